package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCareersApplyMultipart(t *testing.T) {
	var gotResume, gotName string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/careers/apply" {
			t.Errorf("path %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
			return
		}
		gotName = r.FormValue("name")
		file, header, err := r.FormFile("resume")
		if err != nil {
			t.Errorf("resume part: %v", err)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		gotResume = header.Filename + ":" + string(data)
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	err := c.CareersApply(context.Background(), CareersApplication{
		Name:       "Alice Smith",
		Email:      "alice@example.com",
		Position:   "Proposal Manager",
		ResumePath: "/tmp/alice-resume.pdf",
		ResumeData: strings.NewReader("pdf-bytes"),
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if gotName != "Alice Smith" {
		t.Fatalf("name %q", gotName)
	}
	if gotResume != "alice-resume.pdf:pdf-bytes" {
		t.Fatalf("resume %q", gotResume)
	}
}

func TestCareersApplyWithoutResume(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
			return
		}
		if _, _, err := r.FormFile("resume"); err == nil {
			t.Errorf("resume part should be absent")
		}
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	if err := c.CareersApply(context.Background(), CareersApplication{Name: "Bob", Email: "bob@example.com"}); err != nil {
		t.Fatalf("apply: %v", err)
	}
}

func TestContactSendsJSON(t *testing.T) {
	var gotType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotType = r.Header.Get("Content-Type")
		if r.URL.Path != "/api/v1/contact" {
			t.Errorf("path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	if err := c.Contact(context.Background(), ContactMessage{Name: "Bob", Email: "bob@example.com", Message: "hi"}); err != nil {
		t.Fatalf("contact: %v", err)
	}
	if gotType != "application/json" {
		t.Fatalf("content type %q", gotType)
	}
}

func TestScheduleSessionRequiresExpert(t *testing.T) {
	c := New("http://localhost:1", "")
	if err := c.ScheduleSession(context.Background(), SessionRequest{SlotISO: "2025-07-01T10:00:00Z"}); err == nil {
		t.Fatalf("expected validation error")
	}
}
