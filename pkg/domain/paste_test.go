package domain

import (
	"testing"
	"time"
)

func msTime(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func TestVisibleAt(t *testing.T) {
	exp := msTime(61000)
	zero := int64(0)
	one := int64(1)

	cases := []struct {
		name  string
		paste Paste
		now   time.Time
		want  bool
	}{
		{"no limits", Paste{}, msTime(1), true},
		{"before expiry", Paste{ExpiresAt: &exp}, msTime(60999), true},
		{"at expiry", Paste{ExpiresAt: &exp}, msTime(61000), false},
		{"after expiry", Paste{ExpiresAt: &exp}, msTime(99999), false},
		{"views remaining", Paste{RemainingViews: &one}, msTime(1), true},
		{"views exhausted", Paste{RemainingViews: &zero}, msTime(1), false},
		{"exhausted and expired", Paste{ExpiresAt: &exp, RemainingViews: &zero}, msTime(99999), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.paste.VisibleAt(tc.now); got != tc.want {
				t.Errorf("VisibleAt: got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestUnlimited(t *testing.T) {
	if !(&Paste{}).Unlimited() {
		t.Error("nil RemainingViews should be unlimited")
	}
	n := int64(3)
	if (&Paste{RemainingViews: &n}).Unlimited() {
		t.Error("budgeted paste reported unlimited")
	}
}
