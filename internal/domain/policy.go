package domain

import "time"

// GuardPolicy is the explicit policy value passed into every guard
// evaluation. It is computed at call time from configuration plus the
// acting principal; guards never read shared mutable state.
type GuardPolicy struct {
	// OpenHour/CloseHour bound the operating window (local wall clock).
	OpenHour  int
	CloseHour int
	// MaxStartLead is how far before ScheduledAt travel/diagnosis may begin.
	MaxStartLead time.Duration
	// Override skips the time gate for technicians carrying the explicit
	// override capability.
	Override bool
}

// DefaultGuardPolicy is the 08:00-20:00 window with a one hour lead.
func DefaultGuardPolicy() GuardPolicy {
	return GuardPolicy{OpenHour: 8, CloseHour: 20, MaxStartLead: time.Hour}
}

// WithinOperatingWindow reports whether now falls inside the window.
func (p GuardPolicy) WithinOperatingWindow(now time.Time) bool {
	hour := now.Hour()
	return hour >= p.OpenHour && hour < p.CloseHour
}

// AllowsBroadcast reports whether position broadcasting is permitted now.
func (p GuardPolicy) AllowsBroadcast(now time.Time) bool {
	return p.Override || p.WithinOperatingWindow(now)
}

// AllowsStart evaluates the time gate for transitions that initiate travel
// or diagnosis. Evaluated at call time, never cached.
func (p GuardPolicy) AllowsStart(now time.Time, scheduledAt *time.Time) bool {
	if p.Override {
		return true
	}
	if !p.WithinOperatingWindow(now) {
		return false
	}
	if scheduledAt != nil && scheduledAt.Sub(now) > p.MaxStartLead {
		return false
	}
	return true
}
