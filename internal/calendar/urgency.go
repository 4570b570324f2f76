package calendar

import (
	"fmt"
	"time"

	"govsure/internal/domain"
)

// Color is the urgency bucket a due date renders in.
type Color string

const (
	ColorRed    Color = "red"
	ColorOrange Color = "orange"
	ColorYellow Color = "yellow"
	ColorGray   Color = "gray"
)

// ColorFor classifies a due date against a priority. Precedence: critical
// priority or under 7 days is red; high or under 30 days is orange; medium
// or under 60 days is yellow; otherwise gray. A missing date is gray
// unconditionally; the priority is not consulted.
func ColorFor(due *time.Time, priority domain.Priority, now time.Time) Color {
	if due == nil {
		return ColorGray
	}
	days := int(due.Sub(now).Hours() / 24)
	switch {
	case priority == domain.PriorityCritical || days < 7:
		return ColorRed
	case priority == domain.PriorityHigh || days < 30:
		return ColorOrange
	case priority == domain.PriorityMedium || days < 60:
		return ColorYellow
	default:
		return ColorGray
	}
}

// ColorForScore accepts a numeric 0-100 win score instead of a priority
// name, bucketing it first.
func ColorForScore(due *time.Time, score int, now time.Time) Color {
	return ColorFor(due, domain.PriorityFromScore(score), now)
}

// FormatDaysUntilDue renders a day count the way the dashboard does:
// exact days up to two weeks, then whole weeks, then whole months.
func FormatDaysUntilDue(days int) string {
	switch {
	case days < -1:
		return fmt.Sprintf("Overdue by %d days", -days)
	case days == -1:
		return "Overdue by 1 day"
	case days == 0:
		return "Due today"
	case days == 1:
		return "Due in 1 day"
	case days < 14:
		return fmt.Sprintf("Due in %d days", days)
	case days < 30:
		return fmt.Sprintf("Due in %d weeks", days/7)
	case days < 60:
		return "Due in 1 month"
	default:
		return fmt.Sprintf("Due in %d months", days/30)
	}
}

// DaysUntil counts whole days from now to the due date, negative when past.
func DaysUntil(due time.Time, now time.Time) int {
	return int(due.Sub(now).Hours() / 24)
}
