package calendar

import (
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"govsure/internal/domain"
)

func fixedNow() time.Time {
	return time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
}

func TestICSFieldOrder(t *testing.T) {
	end := time.Date(2025, 4, 1, 15, 0, 0, 0, time.UTC)
	e := Event{
		Title:       "Proposal due, final",
		Description: "Submit volumes\nAll of them",
		Location:    "SAM.gov",
		StartDate:   time.Date(2025, 4, 1, 14, 0, 0, 0, time.UTC),
		EndDate:     &end,
		URL:         "https://sam.gov/opp/abc123",
	}
	got := ICS(e, "uid-1", fixedNow)
	want := strings.Join([]string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//GovSure//Pipeline//EN",
		"BEGIN:VEVENT",
		"UID:uid-1",
		"DTSTAMP:20250310T120000Z",
		"DTSTART:20250401T140000Z",
		"DTEND:20250401T150000Z",
		"SUMMARY:Proposal due\\, final",
		"DESCRIPTION:Submit volumes\\nAll of them",
		"LOCATION:SAM.gov",
		"URL:https://sam.gov/opp/abc123",
		"STATUS:CONFIRMED",
		"SEQUENCE:0",
		"END:VEVENT",
		"END:VCALENDAR",
	}, "\r\n") + "\r\n"
	if got != want {
		t.Fatalf("ICS mismatch:\ngot:\n%s\nwant:\n%s", got, want)
	}
}

func TestICSOmitsBlankOptionalFields(t *testing.T) {
	e := Event{
		Title:     "Deadline",
		StartDate: time.Date(2025, 4, 1, 14, 0, 0, 0, time.UTC),
	}
	got := ICS(e, "uid-2", fixedNow)
	for _, prop := range []string{"DESCRIPTION", "LOCATION", "URL"} {
		if strings.Contains(got, prop) {
			t.Fatalf("blank %s should be omitted, got:\n%s", prop, got)
		}
	}
	if !strings.Contains(got, "DTEND:20250401T150000Z") {
		t.Fatalf("end should default to start plus one hour, got:\n%s", got)
	}
}

func TestEndDefaultsAcrossExporters(t *testing.T) {
	e := Event{
		Title:     "Deadline",
		StartDate: time.Date(2025, 4, 1, 14, 0, 0, 0, time.UTC),
	}
	google := GoogleExporter{}.Export(e)
	if !strings.Contains(google.Content, url.QueryEscape("20250401T140000Z/20250401T150000Z")) {
		t.Fatalf("google dates should span one hour: %s", google.Content)
	}
	android := AndroidExporter{}.Export(e)
	u, err := url.Parse(android.Content)
	if err != nil {
		t.Fatalf("parse android url: %v", err)
	}
	q := u.Query()
	if got := q.Get("beginTime"); got != strconv.FormatInt(e.StartDate.UnixMilli(), 10) {
		t.Fatalf("beginTime %s want %d", got, e.StartDate.UnixMilli())
	}
	if got := q.Get("endTime"); got != strconv.FormatInt(e.StartDate.Add(time.Hour).UnixMilli(), 10) {
		t.Fatalf("endTime %s want start plus one hour", got)
	}
	outlook := OutlookExporter{}.Export(e)
	ou, err := url.Parse(outlook.Content)
	if err != nil {
		t.Fatalf("parse outlook url: %v", err)
	}
	if got := ou.Query().Get("enddt"); got != "2025-04-01T15:00:00Z" {
		t.Fatalf("outlook enddt %q want 2025-04-01T15:00:00Z", got)
	}
}

func TestForUserAgent(t *testing.T) {
	apple := []string{
		"Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X)",
		"Mozilla/5.0 (iPad; CPU OS 16_6)",
		"Mozilla/5.0 (iPod touch; CPU iPhone OS 15_0)",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7)",
		"MOZILLA/5.0 (IPHONE)",
	}
	for _, ua := range apple {
		if _, ok := ForUserAgent(ua).(AppleExporter); !ok {
			t.Fatalf("ua %q: want AppleExporter, got %T", ua, ForUserAgent(ua))
		}
	}
	if _, ok := ForUserAgent("Mozilla/5.0 (Linux; Android 14; Pixel 8)").(AndroidExporter); !ok {
		t.Fatalf("android ua should map to AndroidExporter")
	}
	for _, ua := range []string{"Mozilla/5.0 (Windows NT 10.0; Win64; x64)", ""} {
		if _, ok := ForUserAgent(ua).(GoogleExporter); !ok {
			t.Fatalf("ua %q: want GoogleExporter, got %T", ua, ForUserAgent(ua))
		}
	}
}

func TestForPlatform(t *testing.T) {
	if _, ok := ForPlatform("apple").(AppleExporter); !ok {
		t.Fatalf("apple should map to AppleExporter")
	}
	if _, ok := ForPlatform("android").(AndroidExporter); !ok {
		t.Fatalf("android should map to AndroidExporter")
	}
	if _, ok := ForPlatform("outlook").(OutlookExporter); !ok {
		t.Fatalf("outlook should map to OutlookExporter")
	}
	if _, ok := ForPlatform("anything-else").(GoogleExporter); !ok {
		t.Fatalf("unknown platform should map to GoogleExporter")
	}
}

func TestColorForPrecedence(t *testing.T) {
	now := fixedNow()
	at := func(days int) *time.Time {
		t := now.AddDate(0, 0, days)
		return &t
	}
	cases := []struct {
		name     string
		due      *time.Time
		priority domain.Priority
		want     Color
	}{
		{"nil date is gray even when critical", nil, domain.PriorityCritical, ColorGray},
		{"critical beats a far date", at(120), domain.PriorityCritical, ColorRed},
		{"under 7 days is red regardless of priority", at(3), domain.PriorityLow, ColorRed},
		{"high beats a far date", at(120), domain.PriorityHigh, ColorOrange},
		{"under 30 days is orange", at(20), domain.PriorityLow, ColorOrange},
		{"medium beats a far date", at(120), domain.PriorityMedium, ColorYellow},
		{"under 60 days is yellow", at(45), domain.PriorityLow, ColorYellow},
		{"low and far is gray", at(120), domain.PriorityLow, ColorGray},
	}
	for _, c := range cases {
		if got := ColorFor(c.due, c.priority, now); got != c.want {
			t.Fatalf("%s: got %s want %s", c.name, got, c.want)
		}
	}
}

func TestColorForScore(t *testing.T) {
	now := fixedNow()
	far := now.AddDate(0, 0, 120)
	if got := ColorForScore(&far, 80, now); got != ColorOrange {
		t.Fatalf("score 80 far out: got %s want orange", got)
	}
	if got := ColorForScore(&far, 60, now); got != ColorYellow {
		t.Fatalf("score 60 far out: got %s want yellow", got)
	}
	if got := ColorForScore(&far, 10, now); got != ColorGray {
		t.Fatalf("score 10 far out: got %s want gray", got)
	}
	if got := ColorForScore(nil, 99, now); got != ColorGray {
		t.Fatalf("nil date: got %s want gray", got)
	}
}

func TestFormatDaysUntilDue(t *testing.T) {
	cases := []struct {
		days int
		want string
	}{
		{-5, "Overdue by 5 days"},
		{-1, "Overdue by 1 day"},
		{0, "Due today"},
		{1, "Due in 1 day"},
		{5, "Due in 5 days"},
		{13, "Due in 13 days"},
		{14, "Due in 2 weeks"},
		{21, "Due in 3 weeks"},
		{29, "Due in 4 weeks"},
		{30, "Due in 1 month"},
		{59, "Due in 1 month"},
		{60, "Due in 2 months"},
		{95, "Due in 3 months"},
	}
	for _, c := range cases {
		if got := FormatDaysUntilDue(c.days); got != c.want {
			t.Fatalf("days=%d: got %q want %q", c.days, got, c.want)
		}
	}
}

func TestDaysUntil(t *testing.T) {
	now := fixedNow()
	if got := DaysUntil(now.AddDate(0, 0, 10), now); got != 10 {
		t.Fatalf("got %d want 10", got)
	}
	if got := DaysUntil(now.AddDate(0, 0, -3), now); got != -3 {
		t.Fatalf("got %d want -3", got)
	}
}
