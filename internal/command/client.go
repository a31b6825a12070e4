package command

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"fleet-rental-backend/config"
	"fleet-rental-backend/internal/model"
	"fleet-rental-backend/internal/pricing"
)

// Observer receives the outcome of every backend call.
type Observer interface {
	ObserveCommand(op string, elapsed time.Duration, err error)
}

// Client issues vehicle commands and reads to the rental backend.
// It never retries; a rejected command is returned to the caller as *Error.
type Client struct {
	baseURL  string
	userPath string
	headers  map[string]string
	http     *http.Client
	mechanic VehicleRouter
	renter   VehicleRouter
	observer Observer
}

// NewClient builds a client from the backend section of the configuration.
func NewClient(cfg config.BackendConfig) *Client {
	var transport http.RoundTripper = &http.Transport{}
	if cfg.HTTPProxy != "" {
		proxyURL, err := url.Parse(cfg.HTTPProxy)
		if err != nil {
			log.Printf("Warning: Invalid proxy URL %q: %v. Backend client will not use a proxy.", cfg.HTTPProxy, err)
		} else {
			transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
		}
	}

	return &Client{
		baseURL:  cfg.BaseURL,
		userPath: cfg.UserPath,
		headers:  cfg.Headers,
		http: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		mechanic: newMechanicRouter(),
		renter:   newRenterRouter(cfg.RenterRoutes),
	}
}

// SetObserver installs a hook that sees every call's latency and error.
func (c *Client) SetObserver(o Observer) {
	c.observer = o
}

// Router returns the vehicle action router for a role.
func (c *Client) Router(role Role) VehicleRouter {
	if role == RoleRenter {
		return c.renter
	}
	return c.mechanic
}

type requestIDKey struct{}

// WithRequestID attaches the id sent as X-Request-ID on calls made with ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the id attached to ctx, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func (c *Client) do(ctx context.Context, op, method, path string, body io.Reader, contentType string, out any) (err error) {
	start := time.Now()
	defer func() {
		if c.observer != nil {
			c.observer.ObserveCommand(op, time.Since(start), err)
		}
	}()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s: failed to create request: %w", op, err)
	}
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	requestID := RequestID(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	req.Header.Set("X-Request-ID", requestID)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: http request failed: %w", op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: failed to read response body: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &Error{Op: op, Status: resp.StatusCode, Detail: parseDetail(data)}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s: failed to unmarshal response: %w", op, err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, op, path string, payload any) error {
	var body io.Reader
	contentType := ""
	if payload != nil {
		jsonBody, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("%s: failed to marshal request payload: %w", op, err)
		}
		body = bytes.NewReader(jsonBody)
		contentType = "application/json"
	}
	return c.do(ctx, op, http.MethodPost, path, body, contentType, nil)
}

// ReserveVehicle books a pending car for a check by the current mechanic.
func (c *Client) ReserveVehicle(ctx context.Context, carID int64) error {
	return c.post(ctx, "reserve_vehicle", reservePath(carID), nil)
}

// AcceptDelivery takes a reserved car into the delivery flow.
func (c *Client) AcceptDelivery(ctx context.Context, carID int64) error {
	return c.post(ctx, "accept_delivery", acceptDeliveryPath(carID), nil)
}

func (c *Client) StartDelivery(ctx context.Context) error {
	return c.post(ctx, "start_delivery", pathStartDelivery, nil)
}

func (c *Client) StartCheck(ctx context.Context) error {
	return c.post(ctx, "start_check", pathStartCheck, nil)
}

func (c *Client) CancelCheck(ctx context.Context) error {
	return c.post(ctx, "cancel_check", pathCancelCheck, nil)
}

func (c *Client) CompleteDelivery(ctx context.Context) error {
	return c.post(ctx, "complete_delivery", pathCompleteDelivery, nil)
}

// CompleteCheckCar closes a direct rental with the booked mode and duration.
func (c *Client) CompleteCheckCar(ctx context.Context, rent pricing.RentalData) error {
	return c.post(ctx, "complete_check", pathCompleteCheck, rent)
}

// PerformVehicleAction sends a physical action through the router for role.
func (c *Client) PerformVehicleAction(ctx context.Context, role Role, action VehicleAction) error {
	path, err := c.Router(role).Path(action)
	if err != nil {
		return err
	}
	return c.post(ctx, string(action), path, nil)
}

// CurrentDelivery returns the car the mechanic is delivering, or
// ErrNoCurrentDelivery when the backend answers 404.
func (c *Client) CurrentDelivery(ctx context.Context) (*model.Vehicle, error) {
	var v model.Vehicle
	err := c.do(ctx, "current_delivery", http.MethodGet, pathCurrentDelivery, nil, "", &v)
	var cmdErr *Error
	if errors.As(err, &cmdErr) && cmdErr.Status == http.StatusNotFound {
		return nil, ErrNoCurrentDelivery
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// User fetches the profile of the authenticated account.
func (c *Client) User(ctx context.Context) (*model.User, error) {
	var u model.User
	if err := c.do(ctx, "user", http.MethodGet, c.userPath, nil, "", &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Vehicles fetches one of the mechanic listings.
func (c *Client) Vehicles(ctx context.Context, filter Filter) ([]model.Vehicle, error) {
	path, ok := listPaths[filter]
	if !ok {
		return nil, fmt.Errorf("unknown vehicle filter %q", filter)
	}
	var list vehicleList
	if err := c.do(ctx, "list_"+string(filter), http.MethodGet, path, nil, "", &list); err != nil {
		return nil, err
	}
	return list, nil
}

// Search runs a free-text vehicle search (plate or name).
func (c *Client) Search(ctx context.Context, query string) ([]model.Vehicle, error) {
	var list vehicleList
	if err := c.do(ctx, "search", http.MethodGet, searchPath(query), nil, "", &list); err != nil {
		return nil, err
	}
	return list, nil
}

// vehicleList accepts either a bare array or an object wrapping it.
type vehicleList []model.Vehicle

func (l *vehicleList) UnmarshalJSON(data []byte) error {
	var arr []model.Vehicle
	if err := json.Unmarshal(data, &arr); err == nil {
		*l = arr
		return nil
	}
	var wrapped struct {
		Vehicles []model.Vehicle `json:"vehicles"`
		Items    []model.Vehicle `json:"items"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return err
	}
	if wrapped.Vehicles != nil {
		*l = wrapped.Vehicles
	} else {
		*l = wrapped.Items
	}
	return nil
}
