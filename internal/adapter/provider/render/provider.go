// Package render is the HTTP client of the external laudo rendering service.
// The service receives a frozen batch snapshot as JSON and answers with the
// PDF bytes.
package render

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/heartmarshall/laudo-backend/internal/domain"
)

const (
	renderPath     = "/v1/laudos/render"
	maxArtifactLen = 64 << 20
	retryDelay     = 500 * time.Millisecond
)

// ErrRejected marks a 4xx answer: the renderer refused the snapshot and
// repeating the same request will not help.
var ErrRejected = domain.ErrRenderRejected

// Provider renders batch snapshots through the rendering service.
type Provider struct {
	baseURL    string
	httpClient *http.Client
	log        *slog.Logger
}

// NewProvider creates a Provider for the service at baseURL. The caller
// bounds each call with its context; the client itself has no timeout.
func NewProvider(baseURL string, logger *slog.Logger) *Provider {
	return &Provider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		log:        logger.With("adapter", "render"),
	}
}

// Render posts the snapshot and returns the rendered PDF. Network errors and
// 5xx answers are retried once.
func (p *Provider) Render(ctx context.Context, snapshot domain.BatchSnapshot) ([]byte, error) {
	body, err := json.Marshal(toRequest(snapshot))
	if err != nil {
		return nil, fmt.Errorf("render: encode snapshot: %w", err)
	}

	p.log.DebugContext(ctx, "render request",
		slog.Int64("batch_id", snapshot.Batch.ID),
		slog.Int("assessments", len(snapshot.Assessments)),
	)

	var artifact []byte
	attempt := 0
	err = retry.Do(ctx, retry.WithMaxRetries(1, retry.NewConstant(retryDelay)), func(ctx context.Context) error {
		attempt++
		out, err := p.post(ctx, body)
		if err == nil {
			artifact = out
			return nil
		}
		if errors.Is(err, ErrRejected) || ctx.Err() != nil {
			return err
		}
		p.log.WarnContext(ctx, "render retry",
			slog.Int64("batch_id", snapshot.Batch.ID),
			slog.Int("attempt", attempt),
			slog.String("reason", err.Error()),
		)
		return retry.RetryableError(err)
	})
	if err != nil {
		return nil, fmt.Errorf("render batch %d: %w", snapshot.Batch.ID, err)
	}

	p.log.DebugContext(ctx, "render response",
		slog.Int64("batch_id", snapshot.Batch.ID),
		slog.Int("bytes", len(artifact)),
	)

	return artifact, nil
}

func (p *Provider) post(ctx context.Context, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+renderPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/pdf")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, strings.TrimSpace(string(msg)))
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	artifact, err := io.ReadAll(io.LimitReader(resp.Body, maxArtifactLen+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(artifact) > maxArtifactLen {
		return nil, fmt.Errorf("%w: artifact exceeds %d bytes", ErrRejected, maxArtifactLen)
	}
	if len(artifact) == 0 {
		return nil, errors.New("empty artifact")
	}

	return artifact, nil
}
