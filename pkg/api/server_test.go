package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/goran-ethernal/ChainProcessor/internal/common"
	"github.com/goran-ethernal/ChainProcessor/internal/processor"
	"github.com/goran-ethernal/ChainProcessor/pkg/config"
	"github.com/goran-ethernal/ChainProcessor/pkg/query"
	"github.com/stretchr/testify/require"
)

func newAPIConfig(enabled bool, address string) *config.APIConfig {
	return &config.APIConfig{
		Enabled:       enabled,
		ListenAddress: address,
		ReadTimeout:   common.Duration{Duration: 5 * time.Second},
		WriteTimeout:  common.Duration{Duration: 10 * time.Second},
		IdleTimeout:   common.Duration{Duration: 60 * time.Second},
	}
}

func freeAddress(t *testing.T) string {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func TestNewServer(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		config   *config.APIConfig
		validate func(t *testing.T, server *Server)
	}{
		{
			name:   "timeouts and address come from config",
			config: newAPIConfig(true, "localhost:8080"),
			validate: func(t *testing.T, server *Server) {
				t.Helper()

				require.NotNil(t, server.handler)
				require.NotNil(t, server.log)
				require.Equal(t, "localhost:8080", server.server.Addr)
				require.Equal(t, 5*time.Second, server.server.ReadTimeout)
				require.Equal(t, 10*time.Second, server.server.WriteTimeout)
				require.Equal(t, 60*time.Second, server.server.IdleTimeout)
			},
		},
		{
			name: "CORS headers when enabled",
			config: func() *config.APIConfig {
				cfg := newAPIConfig(true, ":9090")
				cfg.CORS = config.CORSConfig{Enabled: true, AllowedOrigins: []string{"*"}}
				return cfg
			}(),
			validate: func(t *testing.T, server *Server) {
				t.Helper()

				w := get(t, server.Handler(), "/health", nil)
				require.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
			},
		},
		{
			name:   "no CORS headers when disabled",
			config: newAPIConfig(true, ":9090"),
			validate: func(t *testing.T, server *Server) {
				t.Helper()

				w := get(t, server.Handler(), "/health", nil)
				require.Equal(t, http.StatusOK, w.Code)
				require.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server := NewServer(tt.config, fakeChains{}, &query.Catalog{}, nil)
			tt.validate(t, server)
		})
	}
}

func TestServer_Start_Disabled(t *testing.T) {
	t.Parallel()

	server := NewServer(newAPIConfig(false, ":8080"), fakeChains{}, &query.Catalog{}, nil)

	done := make(chan error, 1)
	go func() {
		done <- server.Start(context.Background())
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Start() did not return when server is disabled")
	}
}

func TestServer_Start_ServesUntilCancelled(t *testing.T) {
	t.Parallel()

	addr := freeAddress(t)
	chains := fakeChains{{Chain: "kusama", Status: processor.Running.String()}}
	server := NewServer(newAPIConfig(true, addr), chains, &query.Catalog{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- server.Start(ctx)
	}()

	url := fmt.Sprintf("http://%s/api/v1/status", addr)
	require.Eventually(t, func() bool {
		resp, err := http.Get(url) //nolint:noctx
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	resp, err := http.Get(fmt.Sprintf("http://%s/swagger/doc.json", addr)) //nolint:noctx
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(shutdownCtxTimeout + 5*time.Second):
		t.Fatal("Server did not shutdown gracefully within timeout")
	}
}

func TestServer_Start_ListenError(t *testing.T) {
	t.Parallel()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })

	server := NewServer(newAPIConfig(true, l.Addr().String()), fakeChains{}, &query.Catalog{}, nil)
	require.ErrorContains(t, server.Start(context.Background()), "API server error")
}
