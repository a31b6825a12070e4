package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"fleet-rental-backend/config"
	"fleet-rental-backend/internal/broadcast"
	"fleet-rental-backend/internal/cache"
	"fleet-rental-backend/internal/command"
	"fleet-rental-backend/internal/db"
	"fleet-rental-backend/internal/model"
	"fleet-rental-backend/internal/mw"
	"fleet-rental-backend/internal/reconcile"
	"fleet-rental-backend/internal/store"
	"fleet-rental-backend/internal/workflow"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeBackend answers the rental backend endpoints the handlers reach.
type fakeBackend struct {
	mu       sync.Mutex
	user     model.User
	vehicles []model.Vehicle
	reject   map[string]string // path -> detail, answered with 400
	hits     []string
}

func (f *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hits = append(f.hits, r.Method+" "+r.URL.Path)

	if detail, ok := f.reject[r.URL.Path]; ok {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"detail": detail})
		return
	}

	switch r.URL.Path {
	case "/auth/user/me":
		_ = json.NewEncoder(w).Encode(f.user)
	case "/mechanic/all_vehicles":
		_ = json.NewEncoder(w).Encode(f.vehicles)
	case "/mechanic/get_pending_vehicles", "/mechanic/get_in_use_vehicles", "/mechanic/get-delivery-vehicles":
		_, _ = w.Write([]byte(`[]`))
	case "/mechanic/current-delivery":
		w.WriteHeader(http.StatusNotFound)
	default:
		_, _ = w.Write([]byte(`{}`))
	}
}

func (f *fakeBackend) hit(entry string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, h := range f.hits {
		if h == entry {
			return true
		}
	}
	return false
}

type testEnv struct {
	router  *gin.Engine
	backend *fakeBackend
	cache   *cache.Store
	store   store.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	backend := &fakeBackend{
		vehicles: []model.Vehicle{
			{ID: 7, Name: "Tesla Model 3", PlateNumber: "A777AA", Status: model.StatusPending, PricePerDay: 10000, PricePerHour: 3500, OpenPrice: 500},
		},
		reject: map[string]string{},
	}
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	cfg := &config.Config{}
	cfg.Backend.BaseURL = srv.URL
	cfg.Server.RateLimitPerSec = 1000
	cfg.Metrics.Path = "/metrics"
	cfg.Backend.UserPath = "/auth/user/me"
	cfg.Backend.RenterRoutes = config.RenterRoutes{Open: "/rent/open", Close: "/rent/close", GiveKey: "/rent/give-key", TakeKey: "/rent/take-key"}
	cfg.Backend.Timeout = 5 * time.Second

	gormDB, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gormDB))
	s := store.NewGormStore(gormDB)

	client := command.NewClient(cfg.Backend)
	snapshots := cache.New()
	snapshots.SetVehicles(command.FilterAll, backend.vehicles)
	hub := broadcast.NewHub(16)
	refresher := reconcile.NewRefresher(client, snapshots)
	machine := workflow.New(client, snapshots, refresher, hub, s, workflow.Options{
		Schedule: func(time.Duration, func()) {},
	})

	h := NewHandler(Deps{
		Store:    s,
		WebPush:  &webpush.Options{VAPIDPublicKey: "public-key"},
		Machine:  machine,
		Cache:    snapshots,
		Vehicles: client,
		Hub:      hub,
	})

	return &testEnv{
		router:  NewRouter(h, cfg, mw.NewResponseCache(time.Minute), nil),
		backend: backend,
		cache:   snapshots,
		store:   s,
	}
}

func (e *testEnv) do(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestPutSubscription(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPut, "/api/subscriptions", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"invalid request"}`, w.Body.String())
}

func TestSubscriptionLifecycle(t *testing.T) {
	env := newTestEnv(t)
	endpoint := "https://push.example.com/send/abc"

	w := env.do(http.MethodPut, "/api/subscriptions", map[string]any{
		"endpoint":        endpoint,
		"p256dh":          "key",
		"auth":            "secret",
		"subscribed_cars": []int64{9, 7, 9},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.do(http.MethodGet, "/api/subscriptions?endpoint="+endpoint, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"subscribed_cars":[7,9]}`, w.Body.String())

	w = env.do(http.MethodDelete, "/api/subscriptions", map[string]string{"endpoint": endpoint})
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = env.do(http.MethodGet, "/api/subscriptions?endpoint="+endpoint, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetSubscription_MissingEndpoint(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(http.MethodGet, "/api/subscriptions", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetRentalModes(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/api/rental-modes", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Modes []rentalModeResponse `json:"modes"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Modes, 3)
	assert.Equal(t, 120, body.Modes[0].MaxDuration)
	assert.True(t, body.Modes[0].HasOpeningFee)
	assert.Equal(t, 365, body.Modes[2].MaxDuration)
}

func TestGetQuote(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/api/cars/7/quote?mode=days&duration=10", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.EqualValues(t, 90000, body["total_cost"])
	assert.EqualValues(t, 10, body["discount"].(map[string]any)["discount_percent"])
	assert.EqualValues(t, 365, body["max_duration"])
}

func TestGetQuote_Errors(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		path string
		code int
	}{
		{"/api/cars/7/quote?mode=weeks&duration=1", http.StatusBadRequest},
		{"/api/cars/7/quote?mode=hours&duration=25", http.StatusBadRequest},
		{"/api/cars/7/quote?mode=hours&duration=x", http.StatusBadRequest},
		{"/api/cars/99/quote?mode=hours&duration=1", http.StatusNotFound},
		{"/api/cars/abc/quote", http.StatusBadRequest},
	}
	for _, tt := range tests {
		w := env.do(http.MethodGet, tt.path, nil)
		assert.Equal(t, tt.code, w.Code, tt.path)
	}
}

func TestPostQuoteStep(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/cars/7/quote/step", map[string]any{
		"mode": "hours", "duration": 24, "op": "increment",
	})
	require.Equal(t, http.StatusOK, w.Code)
	var resp stepResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 24, resp.Selection.Duration)
	assert.Equal(t, int64(84000), resp.Quote.TotalCost)
	assert.Equal(t, int64(7), resp.RentalData.CarID)

	w = env.do(http.MethodPost, "/api/cars/7/quote/step", map[string]any{
		"mode": "hours", "duration": 5, "op": "switch_mode", "target_mode": "minutes",
	})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "minutes", string(resp.Selection.Mode))
	assert.Equal(t, 1, resp.Selection.Duration)
	assert.Equal(t, int64(500), resp.Quote.TotalCost)

	w = env.do(http.MethodPost, "/api/cars/7/quote/step", map[string]any{"mode": "hours", "op": "jump"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReserve(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/mechanic/vehicles/7/reserve", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, env.backend.hit("POST /mechanic/check-car/7"))

	v, ok := env.cache.Vehicle(7)
	require.True(t, ok)
	assert.Equal(t, model.StatusChecking, v.Status)

	w = env.do(http.MethodGet, "/api/actions?car_id=7", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var journal struct {
		Actions []model.ActionLog `json:"actions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &journal))
	require.Len(t, journal.Actions, 1)
	assert.True(t, journal.Actions[0].Succeeded)
	assert.Equal(t, "checking", journal.Actions[0].ToStatus)
}

func TestReserve_RejectedByBackend(t *testing.T) {
	env := newTestEnv(t)
	env.backend.reject["/mechanic/check-car/7"] = "Car is already reserved"

	w := env.do(http.MethodPost, "/api/mechanic/vehicles/7/reserve", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.JSONEq(t, `{"error":"Car is already reserved","action":"reserve_check"}`, w.Body.String())

	v, _ := env.cache.Vehicle(7)
	assert.Equal(t, model.StatusPending, v.Status)
}

func TestReserve_UnknownVehicle(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(http.MethodPost, "/api/mechanic/vehicles/42/reserve", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestVehicleActions_RouteByRentalStatus(t *testing.T) {
	tests := []struct {
		name   string
		status model.VehicleStatus
		role   string
		path   string
	}{
		{"renter while in use", model.StatusInUse, "renter", "POST /rent/close"},
		{"mechanic while delivering", model.StatusInDelivery, "mechanic", "POST /mechanic/close"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.backend.user = model.User{ID: 1, CurrentRental: &model.Rental{ID: 3, CarDetails: model.Vehicle{ID: 7, Status: tt.status}}}

			w := env.do(http.MethodPost, "/api/rental/lock", nil)
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			assert.JSONEq(t, fmt.Sprintf(`{"ok":true,"role":%q}`, tt.role), w.Body.String())
			assert.True(t, env.backend.hit(tt.path))

			w = env.do(http.MethodGet, "/api/rental/last-action", nil)
			require.Equal(t, http.StatusOK, w.Code)
			body := decode(t, w)
			assert.Equal(t, true, body["active"])
			assert.Equal(t, "close_vehicle", body["action"])
		})
	}
}

func TestVehicleActions_NoRental(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(http.MethodPost, "/api/rental/unlock", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCompleteCheck_Validation(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/mechanic/complete-check", map[string]any{"rental_type": "hours", "duration": 2})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodPost, "/api/mechanic/complete-check", map[string]any{"car_id": 7, "rental_type": "weeks", "duration": 2})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListVehicles(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/api/mechanic/vehicles?filter=all", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "A777AA")
	assert.False(t, env.backend.hit("GET /mechanic/all_vehicles"))

	w = env.do(http.MethodGet, "/api/mechanic/vehicles?filter=pending", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.backend.hit("GET /mechanic/get_pending_vehicles"))

	w = env.do(http.MethodGet, "/api/mechanic/vehicles?filter=broken", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUploadPhotos_UnknownTarget(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodPost, "/api/mechanic/photos/repair/before", strings.NewReader(""))
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetDelivery_Inactive(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(http.MethodGet, "/api/mechanic/delivery", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"active":false}`, w.Body.String())
}

func TestGetVAPIDPublicKey(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(http.MethodGet, "/api/vapid_public_key", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"public_key":"public-key","enabled":true}`, w.Body.String())
}

func TestGetVAPIDPublicKey_Disabled(t *testing.T) {
	h := NewHandler(Deps{})
	r := gin.New()
	r.GET("/api/vapid_public_key", h.GetVAPIDPublicKey)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/vapid_public_key", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"error":"push notifications are disabled","enabled":false}`, w.Body.String())
}

func TestGetActions_InvalidQuery(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{
		"/api/actions?limit=abc",
		"/api/actions?limit=0",
		"/api/actions?car_id=x",
	} {
		w := env.do(http.MethodGet, path, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, path)
	}

	w := env.do(http.MethodGet, "/api/actions?limit=5", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCompletion_RequiresAfterPhotos(t *testing.T) {
	env := newTestEnv(t)
	env.backend.user = model.User{ID: 1, CurrentRental: &model.Rental{ID: 3, CarDetails: model.Vehicle{ID: 7, Status: model.StatusInDelivery}}}

	w := env.do(http.MethodPost, "/api/mechanic/complete-delivery", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.JSONEq(t, `{"error":"Upload the after photos first","action":"complete_delivery"}`, w.Body.String())

	w = env.do(http.MethodPost, "/api/mechanic/complete-check", map[string]any{"car_id": 7, "rental_type": "hours", "duration": 2})
	assert.Equal(t, http.StatusConflict, w.Code)

	assert.False(t, env.backend.hit("POST /mechanic/complete-delivery"))
	assert.False(t, env.backend.hit("POST /mechanic/complete"))
}
