package httpserver

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectionLimiter_AcquireRelease(t *testing.T) {
	limiter := newConnectionLimiter(2)

	assert.True(t, limiter.acquire())
	assert.True(t, limiter.acquire())
	assert.False(t, limiter.acquire())
	assert.Equal(t, int64(2), limiter.inUse())

	limiter.release()
	assert.True(t, limiter.acquire())
}

func TestConnectionLimiter_ZeroMeansUnlimited(t *testing.T) {
	limiter := newConnectionLimiter(0)

	for range 1000 {
		require.True(t, limiter.acquire())
	}
	assert.Equal(t, int64(1000), limiter.inUse())
}

func TestConnectionLimiter_Concurrent(t *testing.T) {
	limiter := newConnectionLimiter(100)
	var successCount atomic.Int64

	start := make(chan struct{})
	var wg sync.WaitGroup
	for range 200 {
		wg.Go(func() {
			<-start
			if limiter.acquire() {
				successCount.Add(1)
			}
		})
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int64(100), successCount.Load())
	assert.Equal(t, int64(100), limiter.inUse())
}

func TestLimitConnections_RejectsAtCapacity(t *testing.T) {
	e := echo.New()
	limiter := newConnectionLimiter(1)
	handler := limitConnections(limiter)(okHandler)

	require.True(t, limiter.acquire())

	rec := serveOnce(t, e, handler, testRemoteAddr)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "connection capacity reached", resp["error"])

	limiter.release()
	rec = serveOnce(t, e, handler, testRemoteAddr)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, limiter.inUse(), "slot is released when the handler returns")
}

func TestLimitConnections_HoldsSlotWhileHandlerRuns(t *testing.T) {
	e := echo.New()
	limiter := newConnectionLimiter(5)
	var during int64
	handler := limitConnections(limiter)(func(c echo.Context) error {
		during = limiter.inUse()
		return c.NoContent(http.StatusOK)
	})

	serveOnce(t, e, handler, testRemoteAddr)

	assert.Equal(t, int64(1), during)
	assert.Zero(t, limiter.inUse())
}
