package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLog() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func TestReverseReturnsDisplayName(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/reverse", r.URL.Path)
		assert.Equal(t, "-16", r.URL.Query().Get("lat"))
		w.Write([]byte(`{"display_name": "Quadra 12, Brasília, DF"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, quietLog())
	addr := c.Reverse(context.Background(), -16.0, -47.98)

	assert.Equal(t, "Quadra 12, Brasília, DF", addr)
}

func TestReverseFallsBackToCoordinateLiteral(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, quietLog())
	addr := c.Reverse(context.Background(), -16.0, -47.98)

	assert.Equal(t, "-16.00000, -47.98000", addr)
}

func TestReverseFallsBackOnEmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, quietLog())
	addr := c.Reverse(context.Background(), 1.5, 2.25)

	assert.Equal(t, FallbackAddress(1.5, 2.25), addr)
}

func TestReverseRetriesTransientFailures(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"display_name": "Setor Central"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, quietLog())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	addr := c.Reverse(ctx, -16.0, -47.98)

	assert.Equal(t, "Setor Central", addr)
	assert.GreaterOrEqual(t, atomic.LoadInt32(&calls), int32(2))
}

func TestSearchParsesRankedPlaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "praça central", r.URL.Query().Get("q"))
		w.Write([]byte(`[
			{"lat": "-15.79", "lon": "-47.88", "display_name": "Praça Central, Brasília"},
			{"lat": "-23.55", "lon": "-46.63", "display_name": "Praça Central, São Paulo"}
		]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, quietLog())
	places, err := c.Search(context.Background(), "praça central")

	require.NoError(t, err)
	require.Len(t, places, 2)
	assert.Equal(t, -15.79, places[0].Latitude)
	assert.Equal(t, -47.88, places[0].Longitude)
	assert.Equal(t, "Praça Central, Brasília", places[0].Label)
}

func TestSearchSkipsMalformedCoordinates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"lat": "not-a-number", "lon": "-47.88", "display_name": "bad"},
			{"lat": "-15.79", "lon": "-47.88", "display_name": "good"}
		]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, quietLog())
	places, err := c.Search(context.Background(), "anything")

	require.NoError(t, err)
	require.Len(t, places, 1)
	assert.Equal(t, "good", places[0].Label)
}

func TestSearchSurfacesPersistentErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, quietLog())
	_, err := c.Search(context.Background(), "anything")

	assert.Error(t, err)
}
