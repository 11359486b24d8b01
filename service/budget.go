package service

import "time"

// TokenBudget caps cumulative token usage over daily and monthly windows.
// A zero limit means that window is unbounded. The service owns the value and
// mutates it after each successful request; it is never persisted.
type TokenBudget struct {
	DailyLimit   int
	DailyUsage   int
	MonthlyLimit int
	MonthlyUsage int
	ResetsAt     time.Time
}

// applyResets clears usage counters when the current time has passed
// ResetsAt. Daily usage always resets at the boundary; monthly usage resets
// only when the calendar month has changed since the window started.
func (b *TokenBudget) applyResets(now time.Time) {
	if b.ResetsAt.IsZero() {
		b.ResetsAt = nextMidnightUTC(now)
		return
	}
	if now.Before(b.ResetsAt) {
		return
	}

	b.DailyUsage = 0

	// The day the expiring window covered.
	windowDay := b.ResetsAt.UTC().AddDate(0, 0, -1)
	if now.UTC().Month() != windowDay.Month() || now.UTC().Year() != windowDay.Year() {
		b.MonthlyUsage = 0
	}

	b.ResetsAt = nextMidnightUTC(now)
}

func nextMidnightUTC(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
}
