package mys

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"mysbind/userhub/internal/identity"
)

// HealthChecker reports which capability class a cookie still has.
type HealthChecker interface {
	Check(ctx context.Context, cookie string) (identity.HealthReport, error)
}

// HTTPChecker asks a cookie probe service for a cookie's status.
// Request: POST {"cookie": "..."}; response: {"status": 0-3, "message": "..."}.
type HTTPChecker struct {
	endpoint string
	client   *http.Client
}

func NewHTTPChecker(endpoint string, timeout time.Duration) *HTTPChecker {
	return &HTTPChecker{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

type checkRequest struct {
	Cookie string `json:"cookie"`
}

type checkResponse struct {
	Status  *int   `json:"status"`
	Message string `json:"message"`
}

func (h *HTTPChecker) Check(ctx context.Context, cookie string) (identity.HealthReport, error) {
	body, err := json.Marshal(checkRequest{Cookie: cookie})
	if err != nil {
		return identity.HealthReport{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(body))
	if err != nil {
		return identity.HealthReport{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return identity.HealthReport{}, fmt.Errorf("probe request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return identity.HealthReport{}, fmt.Errorf("probe returned http %d", resp.StatusCode)
	}

	var out checkResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return identity.HealthReport{}, fmt.Errorf("decode probe response: %w", err)
	}
	if out.Status == nil {
		return identity.HealthReport{}, fmt.Errorf("probe response missing status")
	}
	status := identity.HealthStatus(*out.Status)
	if !status.Valid() {
		return identity.HealthReport{}, fmt.Errorf("%w: %d", identity.ErrUnknownHealthStatus, *out.Status)
	}
	return identity.HealthReport{Status: status, Message: out.Message}, nil
}
