// Package steward implements an autonomous settlement caretaker.
// It observes the settlement via the API, decides on actions by fixed rules,
// and acts through the admin POST endpoints.
package steward

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Snapshot holds all data collected during an observation cycle.
type Snapshot struct {
	Status    Status         `json:"status"`
	Resources []ResourceInfo `json:"resources"`
	Frontier  []Plot         `json:"frontier"`
	Stages    []StageInfo    `json:"stages"`
}

// Status mirrors GET /api/v1/status.
type Status struct {
	Name     string `json:"name"`
	WorldID  string `json:"world_id"`
	Tick     uint64 `json:"tick"`
	Parcels  int    `json:"parcels"`
	Frontier int    `json:"frontier"`
	Unlocked []int  `json:"unlocked"`
}

// ResourceInfo mirrors items from GET /api/v1/resources.
type ResourceInfo struct {
	Key       string  `json:"key"`
	Amount    int     `json:"amount"`
	Cap       int     `json:"cap"`
	PerSecond float64 `json:"per_second"`
}

// Plot mirrors items from GET /api/v1/frontier.
type Plot struct {
	X          int  `json:"x"`
	Y          int  `json:"y"`
	Cost       int  `json:"cost"`
	Affordable bool `json:"affordable"`
}

// StageInfo mirrors items from GET /api/v1/stages.
type StageInfo struct {
	Num   int    `json:"num"`
	Title string `json:"title"`
	State string `json:"state"`
	Ready bool   `json:"ready"`
}

// Observer fetches settlement state from the API.
type Observer struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewObserver creates an Observer targeting the given API base URL.
func NewObserver(baseURL string) *Observer {
	return &Observer{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Observe fetches the four read endpoints and returns a Snapshot.
func (o *Observer) Observe(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{}

	if err := o.fetchJSON(ctx, "/api/v1/status", &snap.Status); err != nil {
		return nil, fmt.Errorf("fetch status: %w", err)
	}
	if err := o.fetchJSON(ctx, "/api/v1/resources", &snap.Resources); err != nil {
		return nil, fmt.Errorf("fetch resources: %w", err)
	}
	if err := o.fetchJSON(ctx, "/api/v1/frontier", &snap.Frontier); err != nil {
		return nil, fmt.Errorf("fetch frontier: %w", err)
	}
	if err := o.fetchJSON(ctx, "/api/v1/stages", &snap.Stages); err != nil {
		return nil, fmt.Errorf("fetch stages: %w", err)
	}

	return snap, nil
}

// fetchJSON GETs a path and decodes the JSON response into target.
func (o *Observer) fetchJSON(ctx context.Context, path string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.BaseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := o.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("GET %s returned %d: %s", path, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// WaitForAPI polls the status endpoint with exponential backoff until it
// responds, the timeout passes, or ctx is cancelled.
func WaitForAPI(ctx context.Context, baseURL string, timeout time.Duration) error {
	backoff := 2 * time.Second
	maxBackoff := 30 * time.Second
	deadline := time.Now().Add(timeout)
	client := &http.Client{Timeout: 10 * time.Second}

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/api/v1/status", nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				slog.Info("homestead API is ready")
				return nil
			}
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("homestead API did not become ready within %s", timeout)
		}
		slog.Info("homestead API not ready, retrying...", "backoff", backoff)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}
