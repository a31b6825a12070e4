package mw

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"fleet-rental-backend/internal/broadcast"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestResponseCache_HitAndFlush(t *testing.T) {
	rc := NewResponseCache(time.Minute)
	calls := 0
	r := gin.New()
	r.GET("/x", rc.Handler(), func(c *gin.Context) {
		calls++
		c.JSON(http.StatusOK, gin.H{"calls": calls})
	})

	get := func() *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, "/x", nil)
		r.ServeHTTP(w, req)
		return w
	}

	first := get()
	second := get()
	assert.Equal(t, 1, calls)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))

	rc.Flush()
	get()
	assert.Equal(t, 2, calls)
}

func TestResponseCache_FlushOnSignal(t *testing.T) {
	rc := NewResponseCache(time.Minute)
	rc.store.Set("/k", cachedResponse{status: 200}, time.Minute)
	hub := broadcast.NewHub(1)

	done := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		rc.FlushOn(ctx, hub)
		close(done)
	}()

	require.Eventually(t, func() bool {
		hub.Publish(broadcast.KindDeliveryCompleted, 1)
		return rc.store.ItemCount() == 0
	}, time.Second, 10*time.Millisecond)

	cancel()
	<-done
}

func TestRateLimiter_PerClient(t *testing.T) {
	r := gin.New()
	r.Use(RateLimiter(rate.Limit(0.0001), 1, "X-Forwarded-For"))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	do := func(ip string) int {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set("X-Forwarded-For", ip+", 10.0.0.1")
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, do("1.1.1.1"))
	assert.Equal(t, http.StatusTooManyRequests, do("1.1.1.1"))
	assert.Equal(t, http.StatusOK, do("2.2.2.2"))
}

type httpRecorder struct {
	mu     sync.Mutex
	routes []string
	codes  []int
}

func (h *httpRecorder) ObserveHTTP(_ string, route string, status int, _ time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.routes = append(h.routes, route)
	h.codes = append(h.codes, status)
}

func TestMetricsAndRequestID(t *testing.T) {
	obs := &httpRecorder{}
	r := gin.New()
	r.Use(Metrics(obs), RequestID())
	r.GET("/cars/:id", func(c *gin.Context) { c.Status(http.StatusAccepted) })

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/cars/5", nil)
	r.ServeHTTP(w, req)
	assert.Len(t, w.Header().Get("X-Request-ID"), 36)

	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodGet, "/nowhere", nil)
	req.Header.Set("X-Request-ID", "abc")
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc", w.Header().Get("X-Request-ID"))

	assert.Equal(t, []string{"/cars/:id", "unmatched"}, obs.routes)
	assert.Equal(t, []int{http.StatusAccepted, http.StatusNotFound}, obs.codes)
}
