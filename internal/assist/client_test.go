package assist

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestGeneratePostsAndDecodes(t *testing.T) {
	var gotPath, gotAuth string
	var gotReq GenerateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotReq)
		json.NewEncoder(w).Encode(GenerateResponse{Text: "Executive summary draft"})
	}))
	defer srv.Close()

	c := New(srv.URL, "tok")
	resp, err := c.Generate(context.Background(), GenerateRequest{Prompt: "write the summary", SectionType: "executive_summary"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if resp.Text != "Executive summary draft" {
		t.Fatalf("text %q", resp.Text)
	}
	if gotPath != "/generate" {
		t.Fatalf("path %s", gotPath)
	}
	if gotAuth != "Bearer tok" {
		t.Fatalf("auth %q", gotAuth)
	}
	if gotReq.Prompt != "write the summary" || gotReq.SectionType != "executive_summary" {
		t.Fatalf("request %+v", gotReq)
	}
}

func TestComplianceCheckDecodesIssues(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/compliance-check" {
			t.Errorf("path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(ComplianceResponse{
			Compliant: false,
			Issues:    []ComplianceIssue{{Clause: "52.204-21", Severity: "high", Message: "missing safeguarding language"}},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	resp, err := c.ComplianceCheck(context.Background(), ComplianceRequest{Text: "our approach"})
	if err != nil {
		t.Fatalf("compliance: %v", err)
	}
	if resp.Compliant || len(resp.Issues) != 1 || resp.Issues[0].Clause != "52.204-21" {
		t.Fatalf("response %+v", resp)
	}
}

func TestErrorIncludesBodyExcerpt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("model overloaded"))
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	_, err := c.Analyze(context.Background(), AnalyzeRequest{Text: "x"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "model overloaded") {
		t.Fatalf("error should carry the body excerpt: %v", err)
	}
}

func TestMisconfiguredClientFailsFast(t *testing.T) {
	c := New("", "")
	if _, err := c.Suggest(context.Background(), SuggestRequest{Text: "x"}); err == nil {
		t.Fatalf("expected error for empty base url")
	}
}
