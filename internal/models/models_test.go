package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCarNumberPattern(t *testing.T) {
	valid := []string{"C1", "C123456789", "C007"}
	for _, number := range valid {
		assert.True(t, CarNumberPattern.MatchString(number), number)
	}

	invalid := []string{"", "C", "123", "c123", "C12a", "XC123", "C123 "}
	for _, number := range invalid {
		assert.False(t, CarNumberPattern.MatchString(number), number)
	}
}

func TestReservationOverlaps(t *testing.T) {
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	res := Reservation{
		StartTime: base,
		EndTime:   base.Add(2 * time.Hour),
	}

	// 闭区间：端点接触也算重叠
	assert.True(t, res.Overlaps(base.Add(-1*time.Hour), base))
	assert.True(t, res.Overlaps(res.EndTime, res.EndTime.Add(1*time.Hour)))
	assert.True(t, res.Overlaps(base.Add(30*time.Minute), base.Add(1*time.Hour)))
	assert.True(t, res.Overlaps(base.Add(-1*time.Hour), base.Add(3*time.Hour)))

	assert.False(t, res.Overlaps(base.Add(-2*time.Hour), base.Add(-1*time.Second)))
	assert.False(t, res.Overlaps(res.EndTime.Add(1*time.Second), res.EndTime.Add(1*time.Hour)))
}
