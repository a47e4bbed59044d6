package steward

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Result is the response from the admin POST endpoints.
type Result struct {
	Changed bool `json:"changed"`
	Cost    int  `json:"cost,omitempty"`
}

// Actor executes decisions via the admin API.
type Actor struct {
	BaseURL    string
	AdminKey   string
	HTTPClient *http.Client
}

// NewActor creates an Actor targeting the given API base URL with admin auth.
func NewActor(baseURL, adminKey string) *Actor {
	return &Actor{
		BaseURL:  baseURL,
		AdminKey: adminKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Act carries out d. A "none" decision is a no-op.
func (a *Actor) Act(ctx context.Context, d Decision) (*Result, error) {
	switch d.Action {
	case ActionNone:
		return &Result{}, nil
	case ActionUnlock:
		return a.post(ctx, "/api/v1/unlock", map[string]int{"stage": d.Stage})
	case ActionPurchase:
		if d.Plot == nil {
			return nil, fmt.Errorf("purchase decision without a plot")
		}
		return a.post(ctx, "/api/v1/purchase", map[string]int{"x": d.Plot.X, "y": d.Plot.Y})
	default:
		return nil, fmt.Errorf("unknown action %q", d.Action)
	}
}

func (a *Actor) post(ctx context.Context, path string, payload any) (*Result, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.AdminKey)

	resp, err := a.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("POST %s: %w", path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("POST %s failed (%d): %s", path, resp.StatusCode, string(respBody))
	}

	var result Result
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &result, nil
}
