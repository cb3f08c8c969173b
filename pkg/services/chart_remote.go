package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ekaya-inc/herdwise/pkg/logging"
	"github.com/ekaya-inc/herdwise/pkg/models"
)

const (
	// RemoteChartTimeout bounds one call to the specification service.
	RemoteChartTimeout = 10 * time.Second
	// RemoteChartRows is the number of result rows sent to the service.
	RemoteChartRows = 10
	// ChartSpecPath is the route served by a specification service.
	ChartSpecPath = "/generate-chart-spec"
)

// ChartSpecPayload is the body POSTed to a specification service.
type ChartSpecPayload struct {
	Query   string           `json:"query"`
	SQL     string           `json:"sql"`
	Results []map[string]any `json:"results"`
	Columns []string         `json:"columns"`
}

// RemoteChartClient calls an external chart specification service.
type RemoteChartClient struct {
	client *http.Client
}

// NewRemoteChartClient creates a client. A nil client gets a fixed
// RemoteChartTimeout.
func NewRemoteChartClient(client *http.Client) *RemoteChartClient {
	if client == nil {
		client = &http.Client{Timeout: RemoteChartTimeout}
	}
	return &RemoteChartClient{client: client}
}

// Generate POSTs the request to {baseURL}/generate-chart-spec and validates
// the returned spec against the result columns.
func (c *RemoteChartClient) Generate(ctx context.Context, baseURL string, req ChartSpecRequest) (*models.ChartSpec, error) {
	payload := ChartSpecPayload{
		Query:   req.Question,
		SQL:     req.SQL,
		Results: req.Results.Head(RemoteChartRows),
		Columns: req.Results.Columns,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, RemoteChartTimeout)
	defer cancel()

	endpoint := strings.TrimSuffix(baseURL, "/") + ChartSpecPath
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("call chart spec service: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("chart spec service returned %d: %s", resp.StatusCode, logging.Preview(string(data)))
	}

	var spec models.ChartSpec
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("decode chart spec: %w", err)
	}
	if err := spec.Normalize(req.Results.Columns); err != nil {
		return nil, err
	}
	return &spec, nil
}
