package sweep

import "time"

// Window is the closed time interval [From, To] a pass uses to select due
// reminders. It is recomputed from the wall clock on every invocation and
// never persisted. A pending reminder whose scheduled instant has aged out
// of the window is simply never selected again.
type Window struct {
	From time.Time
	To   time.Time
}

// NewWindow builds the interval [now-lookback, now+lookahead].
func NewWindow(now time.Time, lookback, lookahead time.Duration) Window {
	return Window{
		From: now.Add(-lookback),
		To:   now.Add(lookahead),
	}
}

// Contains reports whether t lies inside the window, both ends inclusive.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.From) && !t.After(w.To)
}
