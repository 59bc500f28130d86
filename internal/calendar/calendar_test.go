package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func day(s string) time.Time {
	d, _ := time.Parse("2006-01-02", s)
	return d
}

func TestEventCovers(t *testing.T) {
	single := Event{EventType: TypeHoliday, StartDate: day("2025-09-01")}
	assert.True(t, single.Covers(day("2025-09-01")))
	assert.True(t, single.Covers(day("2025-09-01").Add(15*time.Hour)))
	assert.False(t, single.Covers(day("2025-09-02")))

	end := day("2025-09-05")
	multi := Event{EventType: TypeHoliday, StartDate: day("2025-09-01"), EndDate: &end}
	assert.True(t, multi.Covers(day("2025-09-03")))
	assert.True(t, multi.Covers(day("2025-09-05")))
	assert.False(t, multi.Covers(day("2025-08-31")))
	assert.False(t, multi.Covers(day("2025-09-06")))
}

func TestEventTypeValid(t *testing.T) {
	for _, typ := range []EventType{TypeClass, TypeHoliday, TypeExam, TypeSpecial, TypeCancelledClass} {
		assert.True(t, typ.Valid())
	}
	assert.False(t, EventType("BIRTHDAY").Valid())
	assert.False(t, EventType("").Valid())
}
