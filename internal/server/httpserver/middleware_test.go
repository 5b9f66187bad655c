package httpserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/and161185/phishtrack/internal/limiter"
)

func TestRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	gate := limiter.NewGate(1)
	r := gin.New()
	r.Use(Recovery(zaptest.NewLogger(t)), Admission(gate))
	r.GET("/boom", func(*gin.Context) { panic("boom") })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Zero(t, gate.InFlight())

	// the permit was released, so a second request is admitted
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestAdmission_Canceled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	gate := limiter.NewGate(1)
	hold := make(chan struct{})
	entered := make(chan struct{})
	go func() {
		_ = gate.Do(context.Background(), func() error {
			close(entered)
			<-hold
			return nil
		})
	}()
	<-entered
	defer close(hold)

	r := gin.New()
	r.Use(Admission(gate))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
