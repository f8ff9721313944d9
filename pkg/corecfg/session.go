package corecfg

import "time"

// SessionInfo describes an active session on top of an authorized tag tap.
// It is constructed on entry to the Active state and destroyed on exit.
type SessionInfo struct {
	TagUid    TagUid
	UserID    Identifier
	UserLabel UserLabel
	AuthID    Identifier
	StartedAt time.Time
}

// CheckoutReason enumerates why a session ended, carried on MachineUsage.
type CheckoutReason int

const (
	// ReasonNone marks a MachineUsage record that has not yet been closed.
	ReasonNone CheckoutReason = iota
	// ReasonSelfCheckout is set when the same tag re-taps and is confirmed
	// via hold.
	ReasonSelfCheckout
	// ReasonOtherTag is set when a different tag's tap takes over the
	// machine and is confirmed.
	ReasonOtherTag
	// ReasonUiCheckout is set when the UI explicitly confirms a checkout
	// prompt raised for the same-tag case (kept distinct from hold so usage
	// analytics can tell the two confirmation paths apart).
	ReasonUiCheckout
	// ReasonTimeout is set when... actually this value is never assigned in
	// the current state machine (CheckoutPending+Timeout returns to Running
	// without closing the session); it is retained because spec.md section
	// 3 names it as a valid enum value for forward compatibility with a
	// future "abandon after timeout" policy.
	ReasonTimeout
)

func (r CheckoutReason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonSelfCheckout:
		return "self_checkout"
	case ReasonOtherTag:
		return "other_tag"
	case ReasonUiCheckout:
		return "ui_checkout"
	case ReasonTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// MachineUsage is emitted exactly once per completed session.
type MachineUsage struct {
	UserID   Identifier
	AuthID   Identifier
	CheckIn  time.Time
	CheckOut time.Time
	Reason   CheckoutReason
}
