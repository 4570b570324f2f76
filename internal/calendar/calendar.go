// Package calendar turns due dates into platform calendar actions: an ICS
// download for Apple platforms, an intent URI for Android, and add-event
// links for Google and Outlook.
package calendar

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Event is a single calendar entry. EndDate defaults to StartDate plus one
// hour when nil.
type Event struct {
	Title       string
	Description string
	Location    string
	StartDate   time.Time
	EndDate     *time.Time
	URL         string
}

const defaultDuration = time.Hour

func (e Event) end() time.Time {
	if e.EndDate != nil {
		return *e.EndDate
	}
	return e.StartDate.Add(defaultDuration)
}

// Export is the platform-appropriate calendar action: either an ICS file to
// save or a URL to open.
type Export struct {
	Kind     string // "ics" or "url"
	Filename string
	Content  string
}

// Exporter produces a calendar action for one platform.
type Exporter interface {
	Export(e Event) Export
}

type AppleExporter struct{}
type AndroidExporter struct{}
type GoogleExporter struct{}
type OutlookExporter struct{}

// ForUserAgent picks the exporter by user-agent substring, matching the
// product's platform sniffing: Apple devices get an ICS download, Android
// gets a calendar intent, everything else gets Google Calendar.
func ForUserAgent(ua string) Exporter {
	lowered := strings.ToLower(ua)
	switch {
	case strings.Contains(lowered, "iphone"), strings.Contains(lowered, "ipad"),
		strings.Contains(lowered, "ipod"), strings.Contains(lowered, "macintosh"):
		return AppleExporter{}
	case strings.Contains(lowered, "android"):
		return AndroidExporter{}
	default:
		return GoogleExporter{}
	}
}

// ForPlatform resolves a configured platform name; unknown names fall back
// to Google.
func ForPlatform(name string) Exporter {
	switch strings.ToLower(name) {
	case "apple", "ios", "macos":
		return AppleExporter{}
	case "android":
		return AndroidExporter{}
	case "outlook":
		return OutlookExporter{}
	default:
		return GoogleExporter{}
	}
}

func (AppleExporter) Export(e Event) Export {
	return Export{
		Kind:     "ics",
		Filename: icsFilename(e.Title),
		Content:  ICS(e, uuid.NewString(), time.Now),
	}
}

func (AndroidExporter) Export(e Event) Export {
	q := url.Values{}
	q.Set("title", e.Title)
	if e.Description != "" {
		q.Set("description", e.Description)
	}
	if e.Location != "" {
		q.Set("eventLocation", e.Location)
	}
	q.Set("beginTime", fmt.Sprintf("%d", e.StartDate.UnixMilli()))
	q.Set("endTime", fmt.Sprintf("%d", e.end().UnixMilli()))
	return Export{
		Kind:    "url",
		Content: "content://com.android.calendar/events?" + q.Encode(),
	}
}

func (GoogleExporter) Export(e Event) Export {
	q := url.Values{}
	q.Set("action", "TEMPLATE")
	q.Set("text", e.Title)
	q.Set("dates", utcBasic(e.StartDate)+"/"+utcBasic(e.end()))
	if e.Description != "" {
		q.Set("details", e.Description)
	}
	if e.Location != "" {
		q.Set("location", e.Location)
	}
	return Export{
		Kind:    "url",
		Content: "https://calendar.google.com/calendar/render?" + q.Encode(),
	}
}

func (OutlookExporter) Export(e Event) Export {
	q := url.Values{}
	q.Set("path", "/calendar/action/compose")
	q.Set("rru", "addevent")
	q.Set("subject", e.Title)
	q.Set("startdt", e.StartDate.UTC().Format(time.RFC3339))
	q.Set("enddt", e.end().UTC().Format(time.RFC3339))
	if e.Description != "" {
		q.Set("body", e.Description)
	}
	if e.Location != "" {
		q.Set("location", e.Location)
	}
	return Export{
		Kind:    "url",
		Content: "https://outlook.live.com/calendar/0/deeplink/compose?" + q.Encode(),
	}
}

// ICS renders the event as an RFC 5545 text blob with a fixed property
// order. Blank optional properties are omitted entirely, never emitted
// empty.
func ICS(e Event, uid string, now func() time.Time) string {
	if now == nil {
		now = time.Now
	}
	lines := []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//GovSure//Pipeline//EN",
		"BEGIN:VEVENT",
		"UID:" + uid,
		"DTSTAMP:" + utcBasic(now()),
		"DTSTART:" + utcBasic(e.StartDate),
		"DTEND:" + utcBasic(e.end()),
		"SUMMARY:" + escapeICS(e.Title),
	}
	if e.Description != "" {
		lines = append(lines, "DESCRIPTION:"+escapeICS(e.Description))
	}
	if e.Location != "" {
		lines = append(lines, "LOCATION:"+escapeICS(e.Location))
	}
	if e.URL != "" {
		lines = append(lines, "URL:"+e.URL)
	}
	lines = append(lines,
		"STATUS:CONFIRMED",
		"SEQUENCE:0",
		"END:VEVENT",
		"END:VCALENDAR",
	)
	return strings.Join(lines, "\r\n") + "\r\n"
}

// utcBasic formats a time as YYYYMMDDTHHMMSSZ.
func utcBasic(t time.Time) string {
	return t.UTC().Format("20060102T150405Z")
}

func escapeICS(s string) string {
	r := strings.NewReplacer("\\", "\\\\", ";", "\\;", ",", "\\,", "\n", "\\n")
	return r.Replace(s)
}

func icsFilename(title string) string {
	slug := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == ' ', r == '-', r == '_':
			return '-'
		}
		return -1
	}, title)
	slug = strings.Trim(slug, "-")
	if slug == "" {
		slug = "event"
	}
	return slug + ".ics"
}
