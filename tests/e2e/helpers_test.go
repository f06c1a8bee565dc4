//go:build e2e

package e2e_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/heartmarshall/laudo-backend/internal/adapter/postgres/testhelper"
	"github.com/heartmarshall/laudo-backend/internal/app"
	"github.com/heartmarshall/laudo-backend/internal/config"
	"github.com/heartmarshall/laudo-backend/pkg/ctxutil"
)

// renderedPDF is what the stub rendering service answers for every snapshot.
var renderedPDF = []byte("%PDF-1.7 e2e laudo")

type testServer struct {
	URL         string
	Client      *http.Client
	Pool        *pgxpool.Pool
	Stack       *app.Stack
	renderCalls *atomic.Int32
}

// testLogWriter adapts testing.T to io.Writer for slog.
type testLogWriter struct{ t *testing.T }

func (w testLogWriter) Write(p []byte) (int, error) {
	w.t.Helper()
	w.t.Log(string(p))
	return len(p), nil
}

// setupTestServer assembles the application stack over a real PostgreSQL
// container, an in-memory artifact store and a stub renderer.
func setupTestServer(t *testing.T) *testServer {
	t.Helper()

	pool := testhelper.SetupTestDB(t)
	logger := slog.New(slog.NewTextHandler(testLogWriter{t}, nil))

	var calls atomic.Int32
	renderer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = io.Copy(io.Discard, r.Body)
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write(renderedPDF)
	}))
	t.Cleanup(renderer.Close)

	cfg := &config.Config{
		Server: config.ServerConfig{RateLimitPerMinute: 1000},
		Auth: config.AuthConfig{
			JWTSecret:      "e2e-secret-at-least-32-characters-long",
			JWTIssuer:      "laudo-e2e",
			AccessTokenTTL: time.Hour,
		},
		Emission: config.EmissionConfig{
			GraceDelay:         10 * time.Minute,
			PollInterval:       time.Minute,
			ClaimLimit:         10,
			Workers:            2,
			RenderTimeout:      5 * time.Second,
			StaleAfter:         time.Minute,
			ReprocessCooldown:  5 * time.Minute,
			HighExclusionRatio: 0.30,
			RenderCacheSize:    8,
		},
		Renderer: config.RendererConfig{BaseURL: renderer.URL},
		Storage:  config.StorageConfig{Driver: config.StorageDriverMemory, Prefix: "laudos/", UploadAttempts: 2},
	}
	require.NoError(t, cfg.Validate())

	st, err := app.NewStack(context.Background(), cfg, logger, pool, clockwork.NewRealClock())
	require.NoError(t, err)
	t.Cleanup(st.Close)

	srv := httptest.NewServer(st.Handler)
	t.Cleanup(srv.Close)

	return &testServer{
		URL:         srv.URL,
		Client:      srv.Client(),
		Pool:        pool,
		Stack:       st,
		renderCalls: &calls,
	}
}

func (ts *testServer) token(t *testing.T, role string) string {
	t.Helper()
	id := "op-e2e"
	if role == ctxutil.RoleSystem {
		id = "questionnaire"
	}
	tok, err := ts.Stack.JWT.GenerateAccessToken(ctxutil.Actor{ID: id, Role: role})
	require.NoError(t, err)
	return tok
}

// call sends a JSON request and decodes the JSON answer into a generic map
// (or slice, for list endpoints).
func (ts *testServer) call(t *testing.T, method, path, token string, body any) (*http.Response, any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, ts.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := ts.Client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil && err != io.EOF {
		t.Fatalf("decode %s %s: %v", method, path, err)
	}
	return resp, decoded
}

func asMap(t *testing.T, v any) map[string]any {
	t.Helper()
	m, ok := v.(map[string]any)
	require.True(t, ok, "expected JSON object, got %T", v)
	return m
}
