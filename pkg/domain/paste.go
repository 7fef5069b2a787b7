package domain

import (
	"time"
)

// Paste is the single persisted entity. ExpiresAt and RemainingViews are
// nil when the paste has no time-based expiry / no view budget.
type Paste struct {
	ID             string     `json:"id"`
	Content        string     `json:"content"`
	CreatedAt      time.Time  `json:"created_at"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	RemainingViews *int64     `json:"remaining_views,omitempty"`
}

// VisibleAt reports whether the paste is still servable at the given
// instant. Expired and exhausted pastes must behave identically to
// missing ones on every read path.
func (p *Paste) VisibleAt(now time.Time) bool {
	if p.ExpiresAt != nil && !now.Before(*p.ExpiresAt) {
		return false
	}
	if p.RemainingViews != nil && *p.RemainingViews <= 0 {
		return false
	}
	return true
}

// Unlimited reports whether the paste has no view budget. Only such
// pastes are cacheable: their content and expiry never change.
func (p *Paste) Unlimited() bool {
	return p.RemainingViews == nil
}

type CreateParams struct {
	Content    string
	TTLSeconds *int64
	MaxViews   *int64
	// Now is the expiry-reference instant resolved by the time authority.
	// The creation bookkeeping timestamp is stamped separately from the
	// wall clock; the two are independent inputs.
	Now time.Time
}

// View is the outcome of a successful consume or peek. RemainingViews
// carries the post-decrement value on consume, nil when unlimited.
type View struct {
	Content        string     `json:"content"`
	RemainingViews *int64     `json:"remaining_views"`
	ExpiresAt      *time.Time `json:"expires_at"`
}
