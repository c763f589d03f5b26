package result

import (
	"testing"
	"time"
)

func TestDefaultPeriodGraceWindow(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	if p := DefaultPeriod(now); p.Year != 2025 || p.Month != 2 {
		t.Fatalf("day 10 of March should default to February, got %+v", p)
	}

	now = time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC)
	if p := DefaultPeriod(now); p.Year != 2025 || p.Month != 3 {
		t.Fatalf("day 11 of March should default to March, got %+v", p)
	}
}

func TestDefaultPeriodYearRollover(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	if p := DefaultPeriod(now); p.Year != 2024 || p.Month != 12 {
		t.Fatalf("early January should default to previous December, got %+v", p)
	}
}

func TestPeriodValid(t *testing.T) {
	if !(Period{Year: 2025, Month: 6}).Valid() {
		t.Fatal("expected valid period")
	}
	for _, p := range []Period{{2025, 0}, {2025, 13}, {1800, 5}} {
		if p.Valid() {
			t.Fatalf("expected invalid period: %+v", p)
		}
	}
}
