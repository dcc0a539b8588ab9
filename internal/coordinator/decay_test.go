package coordinator

import (
	"testing"
	"time"
)

func TestDecayScoreAgedRecord(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	created := now.AddDate(0, 0, -400)

	got := decayScore(created, 0.2, 0, now)
	want := (1.0 - (400.0/365.0)*0.5) * (0.5 + 0.2*0.5)
	if got != want {
		t.Errorf("decayScore(400d, imp 0.2, access 0) = %v, want %v", got, want)
	}
}

func TestDecayScoreFreshRecord(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// Default importance, no age, no access.
	got := decayScore(now, 0.5, 0, now)
	if got != 0.75 {
		t.Errorf("fresh record decay = %v, want 0.75", got)
	}
}

func TestDecayScoreMonotonicInAge(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	prev := 2.0
	for _, days := range []int{0, 30, 100, 365, 730, 1000} {
		created := now.AddDate(0, 0, -days)
		got := decayScore(created, 0.5, 0, now)
		if got > prev {
			t.Errorf("decay at %d days = %v, rose above %v", days, got, prev)
		}
		prev = got
	}
}

func TestDecayScoreAccessDiscountCapped(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	created := now.AddDate(0, 0, -100)

	at10 := decayScore(created, 0.5, 10, now)
	at3000 := decayScore(created, 0.5, 3000, now)
	capped := decayScore(created, 0.5, 0, now) * 0.7

	if at3000 != capped {
		t.Errorf("access discount past cap = %v, want %v", at3000, capped)
	}
	if at10 <= at3000 {
		t.Errorf("10 accesses (%v) should discount less than 3000 (%v)", at10, at3000)
	}
}

func TestDecayScoreClamps(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// Past two years the base decays to zero.
	got := decayScore(now.AddDate(0, 0, -3000), 1.0, 0, now)
	if got != 0 {
		t.Errorf("ancient record decay = %v, want 0", got)
	}

	// A clock skew putting created_at in the future reads as age 0.
	got = decayScore(now.Add(time.Hour), 1.0, 0, now)
	if got != 1.0 {
		t.Errorf("future created_at decay = %v, want 1", got)
	}
}
