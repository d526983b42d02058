package leveling

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cory-johannsen/simplehome/internal/metrics"
)

func TestHTTPClient_Tier(t *testing.T) {
	tests := []struct {
		name        string
		player      string
		handler     http.HandlerFunc
		want        int
		expectError bool
	}{
		{
			name:   "level found",
			player: "Steve",
			handler: func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/players/Steve/level" {
					w.WriteHeader(http.StatusBadRequest)
					return
				}
				w.Write([]byte(`{"player": "Steve", "level": 25}`))
			},
			want: 25,
		},
		{
			name:   "escaped player id",
			player: "Some Player",
			handler: func(w http.ResponseWriter, r *http.Request) {
				if r.URL.EscapedPath() != "/players/Some%20Player/level" {
					w.WriteHeader(http.StatusBadRequest)
					return
				}
				w.Write([]byte(`{"player": "Some Player", "level": 7}`))
			},
			want: 7,
		},
		{
			name:   "unknown player is tier zero",
			player: "Nobody",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			},
			want: 0,
		},
		{
			name:   "server error",
			player: "Steve",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
			expectError: true,
		},
		{
			name:   "malformed body",
			player: "Steve",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"level": "high"`))
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			got, err := NewHTTPClient(srv.URL+"/", time.Second).Tier(context.Background(), tt.player)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHTTPClient_UnexpectedStatusIsTyped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	counter := metrics.LevelingRequests.WithLabelValues("503")
	before := promtestutil.ToFloat64(counter)

	_, err := NewHTTPClient(srv.URL, time.Second).Tier(context.Background(), "Steve")
	assert.ErrorIs(t, err, ErrUnexpectedStatus)
	assert.Equal(t, before+1, promtestutil.ToFloat64(counter), "requests are counted by status")
}

func TestHTTPClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	_, err := NewHTTPClient(srv.URL, 50*time.Millisecond).Tier(context.Background(), "Steve")
	assert.Error(t, err)
}

func TestNewHTTPClientDefaultTimeout(t *testing.T) {
	c := NewHTTPClient("http://levels.local", 0)
	assert.Equal(t, DefaultTimeout, c.httpClient.Timeout)
	assert.Equal(t, "http://levels.local", c.baseURL)
}

func TestStatic(t *testing.T) {
	s := NewStatic(map[string]int{"Steve": 30})
	ctx := context.Background()

	tier, err := s.Tier(ctx, "Steve")
	require.NoError(t, err)
	assert.Equal(t, 30, tier)

	tier, err = s.Tier(ctx, "Alex")
	require.NoError(t, err)
	assert.Zero(t, tier)

	s.Set("Alex", 12)
	tier, _ = s.Tier(ctx, "Alex")
	assert.Equal(t, 12, tier)
}

type failingSource struct{}

func (failingSource) Tier(context.Context, string) (int, error) {
	return 0, errors.New("connection refused")
}

func TestFallbackTreatsErrorsAsZero(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	f := NewFallback(failingSource{}, zap.New(core))
	before := promtestutil.ToFloat64(metrics.TierFallbacks)

	tier, err := f.Tier(context.Background(), "Steve")
	require.NoError(t, err)
	assert.Zero(t, tier)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "Steve", logs.All()[0].ContextMap()["player"])
	assert.Equal(t, before+1, promtestutil.ToFloat64(metrics.TierFallbacks))
}

func TestFallbackPassesThrough(t *testing.T) {
	f := NewFallback(NewStatic(map[string]int{"Steve": 40}), zaptest.NewLogger(t))
	tier, err := f.Tier(context.Background(), "Steve")
	require.NoError(t, err)
	assert.Equal(t, 40, tier)
}

func TestNewSelectsSource(t *testing.T) {
	logger := zaptest.NewLogger(t)

	_, ok := New("", time.Second, "zero", logger).(*Static)
	assert.True(t, ok, "no base URL uses the static source")

	_, ok = New("http://levels.local", time.Second, "zero", logger).(*Fallback)
	assert.True(t, ok)

	_, ok = New("http://levels.local", time.Second, "error", logger).(*HTTPClient)
	assert.True(t, ok)
}
