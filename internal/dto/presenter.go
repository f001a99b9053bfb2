package dto

import (
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// DateLayout is the wire format for calendar dates.
	DateLayout = "2006-01-02"
	// DisplayDateLayout is the human readable date shown on dashboards.
	DisplayDateLayout = "Jan 02, 2006"
)

var subjectColors = map[string]string{
	"Mathematics":      "#2563EB",
	"Physics":          "#10B981",
	"Chemistry":        "#8B5CF6",
	"Biology":          "#F59E0B",
	"Computer Science": "#EF4444",
	"English":          "#EC4899",
	"History":          "#6B7280",
}

var groupPalette = []string{"#E0F2FE", "#D1FAE5", "#FEF3C7", "#FEE2E2"}

// DisplayName builds a presentable name from the user's name parts,
// falling back to the username and then a placeholder.
func DisplayName(firstName, lastName, username string) string {
	full := strings.TrimSpace(strings.TrimSpace(firstName) + " " + strings.TrimSpace(lastName))
	if full != "" {
		return full
	}
	if username != "" {
		return username
	}
	return "Unknown User"
}

// Initials returns up to two uppercase initials for an avatar badge,
// falling back to the first two letters of the role.
func Initials(firstName, lastName, role string) string {
	var b strings.Builder
	b.WriteString(firstLetter(firstName))
	b.WriteString(firstLetter(lastName))
	if b.Len() > 0 {
		return b.String()
	}
	if len(role) >= 2 {
		return strings.ToUpper(role[:2])
	}
	return "ST"
}

// firstLetter returns the uppercased first rune so multi-byte names
// keep a valid initial.
func firstLetter(name string) string {
	r, size := utf8.DecodeRuneInString(name)
	if size == 0 || r == utf8.RuneError {
		return ""
	}
	return strings.ToUpper(string(r))
}

// SubjectColor maps well known subject names to chart colors, with a
// neutral default for everything else.
func SubjectColor(name string) string {
	if color, ok := subjectColors[name]; ok {
		return color
	}
	return "#6B7280"
}

// GroupColor assigns a background from a fixed palette by position.
func GroupColor(index int) string {
	if index < 0 {
		index = -index
	}
	return groupPalette[index%len(groupPalette)]
}

// FormatDate renders a time in the wire date format.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// FormatDisplayDate renders a time for dashboard cards.
func FormatDisplayDate(t time.Time) string {
	return t.Format(DisplayDateLayout)
}
