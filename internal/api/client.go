package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"govsure/internal/domain"
)

// Client is a minimal GovSure HTTP API client.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults.
func New(baseURL, token string) *Client {
	return &Client{
		BaseURL: baseURL,
		Token:   token,
		Timeout: 10 * time.Second,
	}
}

// APIError wraps non-2xx responses. Detail carries the server's detail
// message when the body is JSON; otherwise the raw body.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return fmt.Sprintf("api error: status=%d", e.StatusCode)
}

// CreatePipelineItemInput is the payload for adding a pursuit to the
// pipeline. opportunity_id, title and agency are required by the server.
type CreatePipelineItemInput struct {
	OpportunityID string   `json:"opportunity_id"`
	Title         string   `json:"title"`
	Agency        string   `json:"agency"`
	Description   string   `json:"description,omitempty"`
	ContractValue *float64 `json:"contract_value,omitempty"`
	DueDate       *string  `json:"due_date,omitempty"`
	PwinScore     *int     `json:"pwin_score,omitempty"`
}

// UpdatePipelineItemInput is a partial update; nil fields are omitted.
type UpdatePipelineItemInput struct {
	Title         *string          `json:"title,omitempty"`
	Agency        *string          `json:"agency,omitempty"`
	Description   *string          `json:"description,omitempty"`
	ContractValue *float64         `json:"contract_value,omitempty"`
	DueDate       *string          `json:"due_date,omitempty"`
	Status        *domain.Status   `json:"status,omitempty"`
	Stage         *domain.Stage    `json:"stage,omitempty"`
	Priority      *domain.Priority `json:"priority,omitempty"`
	Progress      *int             `json:"progress,omitempty"`
	PwinScore     *int             `json:"pwin_score,omitempty"`
}

// PipelineFilters narrows ListPipelineItems. Zero values are omitted from
// the querystring.
type PipelineFilters struct {
	Status   string
	Stage    string
	Priority string
}

func (c *Client) CreatePipelineItem(ctx context.Context, input CreatePipelineItemInput) (domain.PipelineItem, error) {
	var resp domain.PipelineItem
	err := c.do(ctx, http.MethodPost, "api/v1/pipeline/items", input, &resp)
	return resp, err
}

func (c *Client) ListPipelineItems(ctx context.Context, page, limit int, f PipelineFilters) ([]domain.PipelineItem, error) {
	q := url.Values{}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if f.Status != "" {
		q.Set("status", f.Status)
	}
	if f.Stage != "" {
		q.Set("stage", f.Stage)
	}
	if f.Priority != "" {
		q.Set("priority", f.Priority)
	}
	var resp []domain.PipelineItem
	err := c.do(ctx, http.MethodGet, withQuery("api/v1/pipeline/items", q), nil, &resp)
	return resp, err
}

func (c *Client) ActivePipelineItems(ctx context.Context, limit int) ([]domain.PipelineItem, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var resp []domain.PipelineItem
	err := c.do(ctx, http.MethodGet, withQuery("api/v1/pipeline/items/active", q), nil, &resp)
	return resp, err
}

func (c *Client) UpdatePipelineItem(ctx context.Context, id string, input UpdatePipelineItemInput) (domain.PipelineItem, error) {
	var resp domain.PipelineItem
	err := c.do(ctx, http.MethodPut, "api/v1/pipeline/items/"+url.PathEscape(id), input, &resp)
	return resp, err
}

func (c *Client) DeletePipelineItem(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "api/v1/pipeline/items/"+url.PathEscape(id), nil, nil)
}

// SharePipelineItem notifies a third party; there is nothing to mirror
// locally on success.
func (c *Client) SharePipelineItem(ctx context.Context, id, email string) error {
	body := map[string]any{"email": email}
	return c.do(ctx, http.MethodPost, "api/v1/pipeline/items/"+url.PathEscape(id)+"/share", body, nil)
}

func (c *Client) PipelineStats(ctx context.Context) (domain.PipelineStats, error) {
	var resp domain.PipelineStats
	err := c.do(ctx, http.MethodGet, "api/v1/pipeline/stats", nil, &resp)
	return resp, err
}

func (c *Client) DashboardStats(ctx context.Context) (domain.DashboardStats, error) {
	var resp domain.DashboardStats
	err := c.do(ctx, http.MethodGet, "api/v1/dashboard/stats", nil, &resp)
	return resp, err
}

func (c *Client) MyProposals(ctx context.Context, limit int) ([]domain.Proposal, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var resp []domain.Proposal
	err := c.do(ctx, http.MethodGet, withQuery("api/v1/proposals/mine", q), nil, &resp)
	return resp, err
}

func (c *Client) ListProposals(ctx context.Context, skip, limit int, status string) ([]domain.Proposal, error) {
	q := url.Values{}
	if skip > 0 {
		q.Set("skip", strconv.Itoa(skip))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if status != "" {
		q.Set("status", status)
	}
	var resp []domain.Proposal
	err := c.do(ctx, http.MethodGet, withQuery("api/v1/proposals", q), nil, &resp)
	return resp, err
}

func (c *Client) GetProposal(ctx context.Context, id string) (domain.Proposal, error) {
	var resp domain.Proposal
	err := c.do(ctx, http.MethodGet, "api/v1/proposals/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// ProposalsForOpportunity lists proposals attached to one opportunity in
// server order.
func (c *Client) ProposalsForOpportunity(ctx context.Context, opportunityID string) ([]domain.Proposal, error) {
	q := url.Values{}
	q.Set("opportunity_id", opportunityID)
	var resp []domain.Proposal
	err := c.do(ctx, http.MethodGet, withQuery("api/v1/proposals", q), nil, &resp)
	return resp, err
}

func (c *Client) TopOpportunities(ctx context.Context, limit int) ([]domain.Opportunity, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var resp []domain.Opportunity
	err := c.do(ctx, http.MethodGet, withQuery("api/v1/opportunities/top", q), nil, &resp)
	return resp, err
}

func (c *Client) SearchOpportunities(ctx context.Context, query string) ([]domain.Opportunity, error) {
	body := map[string]any{"query": query}
	var resp []domain.Opportunity
	err := c.do(ctx, http.MethodPost, "api/v1/opportunities/search", body, &resp)
	return resp, err
}

// SAMSearch queries the SAM.gov passthrough.
func (c *Client) SAMSearch(ctx context.Context, query string) ([]domain.Opportunity, error) {
	body := map[string]any{"query": query}
	var resp []domain.Opportunity
	err := c.do(ctx, http.MethodPost, "api/v1/opportunities/sam-search", body, &resp)
	return resp, err
}

// GetBrief fetches the cached-or-generating brief for an opportunity.
// A 404 means the brief does not exist yet.
func (c *Client) GetBrief(ctx context.Context, opportunityID string) (domain.Brief, error) {
	var resp domain.Brief
	err := c.do(ctx, http.MethodGet, "api/v1/briefs/"+url.PathEscape(opportunityID), nil, &resp)
	if err == nil && resp.OpportunityID == "" {
		resp.OpportunityID = opportunityID
	}
	return resp, err
}

// GenerateBrief triggers server-side regeneration.
func (c *Client) GenerateBrief(ctx context.Context, opportunityID string) (domain.Brief, error) {
	body := map[string]any{"opportunity_id": opportunityID}
	var resp domain.Brief
	err := c.do(ctx, http.MethodPost, "api/v1/briefs/generate", body, &resp)
	if err == nil && resp.OpportunityID == "" {
		resp.OpportunityID = opportunityID
	}
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	u := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, u, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Detail: detailFromBody(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

// detailFromBody pulls the detail field out of a JSON error body, falling
// back to the raw text.
func detailFromBody(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return strings.TrimSpace(string(body))
}

func withQuery(endpoint string, q url.Values) string {
	if len(q) == 0 {
		return endpoint
	}
	return endpoint + "?" + q.Encode()
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
