package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/me/wolf/pkg/model"
)

// Client is an HTTP client for the wolf API.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// NewClient creates a wolf API client.
func NewClient(baseURL string, logger *slog.Logger) *Client {
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{},
		Logger:     logger,
	}
}

// apiResponse is the parsed envelope.
type apiResponse struct {
	Status     string            `json:"status"`
	RequestID  string            `json:"request_id"`
	Data       json.RawMessage   `json:"data"`
	Pagination *model.Pagination `json:"pagination"`
	Error      *model.APIError   `json:"error"`
}

// do performs an HTTP request and returns the parsed envelope.
func (c *Client) do(ctx context.Context, method, path string, body any) (*apiResponse, error) {
	target := c.BaseURL + path

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
		c.Logger.Debug("HTTP request body", "body", string(data))
	}

	req, err := http.NewRequestWithContext(ctx, method, target, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.Logger.Debug("HTTP request", "method", method, "url", target)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	c.Logger.Debug("HTTP response", "status", resp.StatusCode, "request_id", resp.Header.Get("X-Request-ID"))

	var apiResp apiResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("parse response (status %d): %w\nbody: %s", resp.StatusCode, err, string(respBody))
	}

	if apiResp.Status == "error" && apiResp.Error != nil {
		return &apiResp, apiResp.Error
	}

	return &apiResp, nil
}

// SubmitPlan asks the server to build and store a plan from params.
func (c *Client) SubmitPlan(ctx context.Context, params any) (*model.Plan, error) {
	resp, err := c.do(ctx, http.MethodPost, "/api/v1/plans/", params)
	if err != nil {
		return nil, err
	}
	var p model.Plan
	if err := json.Unmarshal(resp.Data, &p); err != nil {
		return nil, fmt.Errorf("parse plan: %w", err)
	}
	return &p, nil
}

// ListPlans returns one page of stored plan summaries and the total count.
func (c *Client) ListPlans(ctx context.Context, opts model.ListOptions) ([]*model.PlanSummary, int, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(opts.Limit))
	q.Set("offset", strconv.Itoa(opts.Offset))
	if opts.Pair != "" {
		q.Set("pair", opts.Pair)
	}
	resp, err := c.do(ctx, http.MethodGet, "/api/v1/plans/?"+q.Encode(), nil)
	if err != nil {
		return nil, 0, err
	}
	var plans []*model.PlanSummary
	if err := json.Unmarshal(resp.Data, &plans); err != nil {
		return nil, 0, fmt.Errorf("parse plans: %w", err)
	}
	total := len(plans)
	if resp.Pagination != nil {
		total = resp.Pagination.Total
	}
	return plans, total, nil
}

// GetPlan fetches a stored plan.
func (c *Client) GetPlan(ctx context.Context, id string) (*model.Plan, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/v1/plans/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	var p model.Plan
	if err := json.Unmarshal(resp.Data, &p); err != nil {
		return nil, fmt.Errorf("parse plan: %w", err)
	}
	return &p, nil
}

// DeletePlan removes a stored plan.
func (c *Client) DeletePlan(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodDelete, "/api/v1/plans/"+url.PathEscape(id), nil)
	return err
}
