package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
)

// CareersApplication is the multipart careers form. Resume is attached as a
// file part named "resume".
type CareersApplication struct {
	Name        string
	Email       string
	Position    string
	CoverLetter string
	ResumePath  string
	ResumeData  io.Reader
}

type ContactMessage struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Company string `json:"company,omitempty"`
	Message string `json:"message"`
}

type FractionalBDInquiry struct {
	Name           string `json:"name"`
	Email          string `json:"email"`
	Company        string `json:"company"`
	ContractVolume string `json:"contract_volume,omitempty"`
	Message        string `json:"message,omitempty"`
}

type ExpertMatchRequest struct {
	Agency    string   `json:"agency,omitempty"`
	NAICS     []string `json:"naics,omitempty"`
	Specialty string   `json:"specialty,omitempty"`
}

type Expert struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Specialties []string `json:"specialties,omitempty"`
	Agencies    []string `json:"agencies,omitempty"`
}

type SessionRequest struct {
	ExpertID string `json:"expert_id"`
	SlotISO  string `json:"slot"`
	Topic    string `json:"topic,omitempty"`
}

// CareersApply submits the application as multipart form data.
func (c *Client) CareersApply(ctx context.Context, app CareersApplication) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fields := map[string]string{
		"name":         app.Name,
		"email":        app.Email,
		"position":     app.Position,
		"cover_letter": app.CoverLetter,
	}
	for k, v := range fields {
		if v == "" {
			continue
		}
		if err := w.WriteField(k, v); err != nil {
			return err
		}
	}
	if app.ResumeData != nil {
		name := filepath.Base(app.ResumePath)
		if name == "" || name == "." {
			name = "resume.pdf"
		}
		part, err := w.CreateFormFile("resume", name)
		if err != nil {
			return err
		}
		if _, err := io.Copy(part, app.ResumeData); err != nil {
			return fmt.Errorf("copy resume: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return err
	}
	u := c.base() + "/api/v1/careers/apply"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
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
	io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *Client) Contact(ctx context.Context, msg ContactMessage) error {
	return c.do(ctx, http.MethodPost, "api/v1/contact", msg, nil)
}

func (c *Client) FractionalBDInquire(ctx context.Context, inq FractionalBDInquiry) error {
	return c.do(ctx, http.MethodPost, "api/v1/fractional-bd/inquire", inq, nil)
}

func (c *Client) MatchExpert(ctx context.Context, req ExpertMatchRequest) ([]Expert, error) {
	var resp []Expert
	err := c.do(ctx, http.MethodPost, "api/v1/expert-onboarding/match-expert", req, &resp)
	return resp, err
}

func (c *Client) AvailableExperts(ctx context.Context) ([]Expert, error) {
	var resp []Expert
	err := c.do(ctx, http.MethodGet, "api/v1/expert-onboarding/available-experts", nil, &resp)
	return resp, err
}

func (c *Client) ScheduleSession(ctx context.Context, req SessionRequest) error {
	if strings.TrimSpace(req.ExpertID) == "" {
		return fmt.Errorf("expert_id is required")
	}
	return c.do(ctx, http.MethodPost, "api/v1/expert-onboarding/schedule-session", req, nil)
}
