// Package assist proxies the drafting AI endpoints used by the Word
// task pane: generate, compliance-check, analyze, and suggest.
package assist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func New(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 20 * time.Second,
		},
	}
}

type GenerateRequest struct {
	Prompt      string `json:"prompt"`
	SectionType string `json:"section_type,omitempty"`
	Context     string `json:"context,omitempty"`
}

type GenerateResponse struct {
	Text string `json:"text"`
}

type ComplianceRequest struct {
	Text      string `json:"text"`
	FARClause string `json:"far_clause,omitempty"`
}

type ComplianceIssue struct {
	Clause   string `json:"clause"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

type ComplianceResponse struct {
	Compliant bool              `json:"compliant"`
	Issues    []ComplianceIssue `json:"issues,omitempty"`
}

type AnalyzeRequest struct {
	Text string `json:"text"`
}

type AnalyzeResponse struct {
	Readability float64  `json:"readability"`
	Tone        string   `json:"tone,omitempty"`
	Findings    []string `json:"findings,omitempty"`
}

type SuggestRequest struct {
	Text    string `json:"text"`
	Section string `json:"section,omitempty"`
}

type SuggestResponse struct {
	Suggestions []string `json:"suggestions"`
}

func (c *Client) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, error) {
	var resp GenerateResponse
	err := c.post(ctx, "/generate", req, &resp)
	return resp, err
}

func (c *Client) ComplianceCheck(ctx context.Context, req ComplianceRequest) (ComplianceResponse, error) {
	var resp ComplianceResponse
	err := c.post(ctx, "/compliance-check", req, &resp)
	return resp, err
}

func (c *Client) Analyze(ctx context.Context, req AnalyzeRequest) (AnalyzeResponse, error) {
	var resp AnalyzeResponse
	err := c.post(ctx, "/analyze", req, &resp)
	return resp, err
}

func (c *Client) Suggest(ctx context.Context, req SuggestRequest) (SuggestResponse, error) {
	var resp SuggestResponse
	err := c.post(ctx, "/suggest", req, &resp)
	return resp, err
}

func (c *Client) post(ctx context.Context, endpoint string, body, out any) error {
	if c == nil {
		return fmt.Errorf("assist client is nil")
	}
	if c.baseURL == "" {
		return fmt.Errorf("assist client misconfigured")
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal assist payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("assist error %s: %s", resp.Status, strings.TrimSpace(string(excerpt)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
