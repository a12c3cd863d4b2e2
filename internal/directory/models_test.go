package directory

import (
	"testing"
	"time"
)

func TestYearsSinceBaptism(t *testing.T) {
	now := time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name    string
		baptism *time.Time
		want    int
	}{
		{"unknown date", nil, 0},
		{"anniversary passed", timePtr(2020, 3, 1), 6},
		{"anniversary today", timePtr(2020, 6, 15), 6},
		{"anniversary upcoming", timePtr(2020, 9, 1), 5},
		{"future date", timePtr(2027, 1, 1), 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := Member{BaptismDate: tc.baptism}
			if got := m.YearsSinceBaptism(now); got != tc.want {
				t.Errorf("expected %d years, got %d", tc.want, got)
			}
		})
	}
}

func timePtr(year int, month time.Month, day int) *time.Time {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return &t
}
