// Package engagement decides when to disclose the cookie banner and other
// intrusive UI. Policy is pure; Banner schedules it on timers.
package engagement

import "time"

// Policy holds the disclosure timings.
type Policy struct {
	// ReturningDelay is when a returning visitor sees the banner.
	ReturningDelay time.Duration
	// InitialDelay is the earliest a new visitor sees the banner, and only
	// once they have engaged.
	InitialDelay time.Duration
	// Fallback is how long after InitialDelay the banner is forced for a new
	// visitor who never engages.
	Fallback time.Duration
}

// DefaultPolicy returns the standard timings.
func DefaultPolicy() Policy {
	return Policy{
		ReturningDelay: 800 * time.Millisecond,
		InitialDelay:   1500 * time.Millisecond,
		Fallback:       3 * time.Second,
	}
}

// WithDefaults fills zero fields from DefaultPolicy.
func (p Policy) WithDefaults() Policy {
	d := DefaultPolicy()
	if p.ReturningDelay <= 0 {
		p.ReturningDelay = d.ReturningDelay
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = d.InitialDelay
	}
	if p.Fallback <= 0 {
		p.Fallback = d.Fallback
	}
	return p
}

// Input is the visitor state the policy reads.
type Input struct {
	HasDecision      bool `json:"has_decision"`
	DismissedSession bool `json:"dismissed_this_session"`
	Returning        bool `json:"returning"`
}

// Decision is the outcome for one page load.
type Decision struct {
	Show bool `json:"show"`
	// Delay is the earliest time after page load the banner may appear.
	Delay time.Duration `json:"delay"`
	// RequireEngagement means the banner waits for a scroll or click
	// between Delay and Deadline.
	RequireEngagement bool `json:"require_engagement"`
	// Deadline is when the banner appears regardless of engagement.
	Deadline time.Duration `json:"deadline"`
}

// Decide applies p to in.
func (p Policy) Decide(in Input) Decision {
	if in.HasDecision || in.DismissedSession {
		return Decision{}
	}
	if in.Returning {
		return Decision{Show: true, Delay: p.ReturningDelay, Deadline: p.ReturningDelay}
	}
	return Decision{
		Show:              true,
		Delay:             p.InitialDelay,
		RequireEngagement: true,
		Deadline:          p.InitialDelay + p.Fallback,
	}
}

// VisibleAt reports whether the banner is showing at elapsed time since page
// load, given whether the visitor has engaged by then.
func (p Policy) VisibleAt(in Input, elapsed time.Duration, engaged bool) bool {
	d := p.Decide(in)
	if !d.Show {
		return false
	}
	if elapsed >= d.Deadline {
		return true
	}
	return elapsed >= d.Delay && (engaged || !d.RequireEngagement)
}
