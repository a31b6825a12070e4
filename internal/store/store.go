package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"fleet-rental-backend/internal/model"
)

var ErrNotFound = errors.New("record not found")

// Store defines the interface for all database operations.
type Store interface {
	RecordAction(ctx context.Context, entry *model.ActionLog) error
	RecentActions(ctx context.Context, carID int64, limit int) ([]model.ActionLog, error)

	SaveSubscription(ctx context.Context, sub *model.PushSubscription, carIDs []int64) error
	Subscription(ctx context.Context, endpoint string) (*model.PushSubscription, error)
	DeleteSubscription(ctx context.Context, endpoint string) error
	SubscriptionsForCar(ctx context.Context, carID int64) ([]model.PushSubscription, error)
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db, now: time.Now}
}

// RecordAction appends a command outcome to the journal.
func (s *gormStore) RecordAction(ctx context.Context, entry *model.ActionLog) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now().UTC()
	}
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to record %s for car %d: %w", entry.Action, entry.CarID, err)
	}
	return nil
}

// RecentActions returns the newest journal entries, optionally for one car (carID 0 means all).
func (s *gormStore) RecentActions(ctx context.Context, carID int64, limit int) ([]model.ActionLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	q := s.db.WithContext(ctx).Order("created_at DESC").Order("id DESC").Limit(limit)
	if carID != 0 {
		q = q.Where("car_id = ?", carID)
	}
	var entries []model.ActionLog
	if err := q.Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to list actions: %w", err)
	}
	return entries, nil
}

// SaveSubscription creates or replaces a subscription and its car filter.
func (s *gormStore) SaveSubscription(ctx context.Context, sub *model.PushSubscription, carIDs []int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "endpoint"}},
			DoUpdates: clause.AssignmentColumns([]string{"p256dh", "auth", "updated_at"}),
		}).Create(sub).Error; err != nil {
			return fmt.Errorf("failed to upsert subscription: %w", err)
		}

		if err := tx.Where("endpoint = ?", sub.Endpoint).Delete(&model.SubscriptionCar{}).Error; err != nil {
			return fmt.Errorf("failed to clear subscription cars: %w", err)
		}

		if len(carIDs) == 0 {
			sub.Cars = nil
			return nil
		}
		seen := make(map[int64]bool, len(carIDs))
		cars := make([]model.SubscriptionCar, 0, len(carIDs))
		for _, id := range carIDs {
			if seen[id] {
				continue
			}
			seen[id] = true
			cars = append(cars, model.SubscriptionCar{Endpoint: sub.Endpoint, CarID: id})
		}
		if err := tx.Create(&cars).Error; err != nil {
			return fmt.Errorf("failed to save subscription cars: %w", err)
		}
		sub.Cars = cars
		return nil
	})
}

func (s *gormStore) Subscription(ctx context.Context, endpoint string) (*model.PushSubscription, error) {
	var sub model.PushSubscription
	err := s.db.WithContext(ctx).Preload("Cars").First(&sub, "endpoint = ?", endpoint).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (s *gormStore) DeleteSubscription(ctx context.Context, endpoint string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("endpoint = ?", endpoint).Delete(&model.SubscriptionCar{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.PushSubscription{Endpoint: endpoint}).Error
	})
}

// SubscriptionsForCar returns the subscriptions interested in a car: those
// narrowed to it and those with no car filter. carID 0 matches everyone.
func (s *gormStore) SubscriptionsForCar(ctx context.Context, carID int64) ([]model.PushSubscription, error) {
	q := s.db.WithContext(ctx)
	if carID != 0 {
		q = q.Where(
			"NOT EXISTS (SELECT 1 FROM subscription_cars sc WHERE sc.endpoint = push_subscriptions.endpoint) "+
				"OR EXISTS (SELECT 1 FROM subscription_cars sc WHERE sc.endpoint = push_subscriptions.endpoint AND sc.car_id = ?)",
			carID,
		)
	}
	var subs []model.PushSubscription
	if err := q.Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch subscriptions for car %d: %w", carID, err)
	}
	return subs, nil
}
