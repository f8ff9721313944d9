// Package session implements the hierarchical session FSM of spec.md
// section 4.6 on top of authorization events, plus the event pump of
// section 4.7. There is no teacher analog (the teacher has no session
// concept); the design follows spec.md section 9's "Hierarchical FSM as
// tagged sum" note directly: a tagged discriminant (StateID) plus a single
// context struct, rather than an inheritance hierarchy of state types.
package session

import "github.com/werkstattwaedi/accesscore/pkg/corecfg"

// StateID is the FSM's tagged discriminant (spec.md section 4.6).
type StateID int

const (
	StateNoSession StateID = iota
	StateRunning
	StateCheckoutPending
	StateTakeoverPending
)

func (s StateID) String() string {
	switch s {
	case StateNoSession:
		return "no_session"
	case StateRunning:
		return "running"
	case StateCheckoutPending:
		return "checkout_pending"
	case StateTakeoverPending:
		return "takeover_pending"
	default:
		return "unknown"
	}
}

// isActiveChild reports whether s is one of Active's three children. The
// FSM's tree has exactly two levels (NoSession at the root, Active's
// children below it), so the longest-common-ancestor computation spec.md
// section 9 describes reduces to this one boundary check: Active is
// entered/exited exactly when a transition crosses it.
func isActiveChild(s StateID) bool {
	return s == StateRunning || s == StateCheckoutPending || s == StateTakeoverPending
}

func toSessionStateID(s StateID) corecfg.SessionStateID {
	switch s {
	case StateRunning:
		return corecfg.StateRunning
	case StateCheckoutPending:
		return corecfg.StateCheckoutPending
	case StateTakeoverPending:
		return corecfg.StateTakeoverPending
	default:
		return corecfg.StateNoSession
	}
}

// Event is the FSM's input alphabet (spec.md section 4.6).
type Event interface{ isEvent() }

// UserAuthorized carries a verifier authorization decision into the FSM.
type UserAuthorized struct {
	TagUID    corecfg.TagUid
	UserID    corecfg.Identifier
	UserLabel corecfg.UserLabel
	AuthID    corecfg.Identifier
}

// TagPresence reports the current reader tag-presence state.
type TagPresence struct{ Present bool }

// UiConfirm is a UI-driven confirmation of a pending checkout/takeover.
type UiConfirm struct{}

// UiCancel is a UI-driven cancellation of a pending checkout/takeover.
type UiCancel struct{}

// HoldConfirmed is delivered by the event pump once a tag has stayed
// present for hold_duration while a pending state is active.
type HoldConfirmed struct{}

// Timeout is delivered by the event pump once pending_deadline has passed.
type Timeout struct{}

func (UserAuthorized) isEvent() {}
func (TagPresence) isEvent()    {}
func (UiConfirm) isEvent()      {}
func (UiCancel) isEvent()       {}
func (HoldConfirmed) isEvent()  {}
func (Timeout) isEvent()        {}

// maxObservers bounds the session observer vector to 4, the exact figure
// spec.md section 9 gives for the session FSM.
const maxObservers = 4

// Observer is the session observer named in spec.md section 6.
type Observer interface {
	OnSessionStarted(info corecfg.SessionInfo)
	OnSessionEnded(info corecfg.SessionInfo, usage corecfg.MachineUsage)
}
