package dto

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Aziza Karimova", DisplayName("Aziza", "Karimova", "aziza"))
	assert.Equal(t, "Aziza", DisplayName("Aziza", "", "aziza"))
	assert.Equal(t, "aziza", DisplayName("", "", "aziza"))
	assert.Equal(t, "Unknown User", DisplayName("  ", "", ""))
}

func TestInitials(t *testing.T) {
	assert.Equal(t, "AK", Initials("Aziza", "Karimova", "student"))
	assert.Equal(t, "A", Initials("aziza", "", "student"))
	assert.Equal(t, "TE", Initials("", "", "teacher"))
	assert.Equal(t, "ST", Initials("", "", "x"))
}

func TestInitialsMultiByteNames(t *testing.T) {
	assert.Equal(t, "ÉK", Initials("Éva", "Kovács", "student"))
	assert.Equal(t, "ÖY", Initials("Özge", "Yılmaz", "student"))
}

func TestSubjectColor(t *testing.T) {
	assert.Equal(t, "#2563EB", SubjectColor("Mathematics"))
	assert.Equal(t, "#10B981", SubjectColor("Physics"))
	assert.Equal(t, "#8B5CF6", SubjectColor("Chemistry"))
	assert.Equal(t, "#6B7280", SubjectColor("Astronomy"))
}

func TestGroupColorCyclesPalette(t *testing.T) {
	assert.Equal(t, GroupColor(0), GroupColor(4))
	assert.NotEqual(t, GroupColor(0), GroupColor(1))
	assert.Equal(t, GroupColor(1), GroupColor(-1))
}

func TestFormatDates(t *testing.T) {
	day := time.Date(2026, time.March, 5, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, "2026-03-05", FormatDate(day))
	assert.Equal(t, "Mar 05, 2026", FormatDisplayDate(day))
}
