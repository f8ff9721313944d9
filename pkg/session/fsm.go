package session

import (
	"sync"
	"time"

	"github.com/werkstattwaedi/accesscore/internal/corerr"
	"github.com/werkstattwaedi/accesscore/pkg/corecfg"
)

// FSM is the hierarchical session state machine of spec.md section 4.6.
// All mutation happens through Receive, called serially from the main
// dispatcher thread (spec.md section 5); GetSnapshot is safe to call
// concurrently from the UI thread.
type FSM struct {
	mu sync.Mutex

	state   StateID
	active  corecfg.SessionInfo
	pending corecfg.SessionInfo

	hasPendingTakeover bool
	checkoutReason     corecfg.CheckoutReason

	pendingSince    time.Time
	pendingDeadline time.Time
	tagPresent      bool
	tagPresentSince time.Time

	confirmationTimeout time.Duration
	holdDuration        time.Duration

	observers []Observer

	now func() time.Time

	snapMu   sync.Mutex
	snapshot corecfg.SessionSnapshot
}

// New builds an FSM in NoSession with the given confirmation/hold
// parameters (spec.md section 4.6: defaults 15s/5s).
func New(confirmationTimeout, holdDuration time.Duration) *FSM {
	f := &FSM{
		confirmationTimeout: confirmationTimeout,
		holdDuration:        holdDuration,
		now:                 time.Now,
	}
	f.syncSnapshotLocked()
	return f
}

// AddObserver registers a session observer. Must be called before any
// Receive; spec.md section 9 requires observer vectors to be populated
// before any event can fire.
func (f *FSM) AddObserver(o Observer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.observers) >= maxObservers {
		return corerr.New(corerr.ResourceExhausted, "session.AddObserver")
	}
	f.observers = append(f.observers, o)
	return nil
}

// GetSnapshot returns a copy of the FSM's observable state, safe to call
// from any goroutine (spec.md section 5).
func (f *FSM) GetSnapshot() corecfg.SessionSnapshot {
	f.snapMu.Lock()
	defer f.snapMu.Unlock()
	return f.snapshot
}

// Receive delivers one event. Illegal events for the current state are
// silent no-ops, per spec.md section 7 ("the FSM never fails").
func (f *FSM) Receive(ev Event) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if tp, ok := ev.(TagPresence); ok {
		if tp.Present && !f.tagPresent {
			f.tagPresentSince = f.now()
		}
		f.tagPresent = tp.Present
	}

	switch f.state {
	case StateNoSession:
		f.handleNoSession(ev)
	case StateRunning:
		f.handleRunning(ev)
	case StateCheckoutPending:
		f.handleCheckoutPending(ev)
	case StateTakeoverPending:
		f.handleTakeoverPending(ev)
	}

	f.syncSnapshotLocked()
}

func (f *FSM) handleNoSession(ev Event) {
	ua, ok := ev.(UserAuthorized)
	if !ok {
		return
	}
	f.active = corecfg.SessionInfo{
		TagUid:    ua.TagUID,
		UserID:    ua.UserID,
		UserLabel: ua.UserLabel,
		AuthID:    ua.AuthID,
		StartedAt: f.now(),
	}
	f.transitionTo(StateRunning)
}

func (f *FSM) handleRunning(ev Event) {
	ua, ok := ev.(UserAuthorized)
	if !ok {
		return
	}
	f.pendingSince = f.now()
	f.pendingDeadline = f.pendingSince.Add(f.confirmationTimeout)
	if ua.TagUID.Equal(f.active.TagUid) {
		f.checkoutReason = corecfg.ReasonSelfCheckout
		f.transitionTo(StateCheckoutPending)
		return
	}
	f.pending = corecfg.SessionInfo{
		TagUid:    ua.TagUID,
		UserID:    ua.UserID,
		UserLabel: ua.UserLabel,
		AuthID:    ua.AuthID,
		StartedAt: f.now(),
	}
	f.transitionTo(StateTakeoverPending)
}

func (f *FSM) handleCheckoutPending(ev Event) {
	switch e := ev.(type) {
	case HoldConfirmed:
		f.checkoutReason = corecfg.ReasonSelfCheckout
		f.transitionTo(StateNoSession)
	case UiConfirm:
		f.checkoutReason = corecfg.ReasonUiCheckout
		f.transitionTo(StateNoSession)
	case UiCancel:
		f.transitionTo(StateRunning)
	case Timeout:
		f.transitionTo(StateRunning)
	case TagPresence:
		if !e.Present {
			f.transitionTo(StateRunning)
		}
	}
}

func (f *FSM) handleTakeoverPending(ev Event) {
	switch ev.(type) {
	case HoldConfirmed, UiConfirm:
		f.checkoutReason = corecfg.ReasonOtherTag
		f.hasPendingTakeover = true
		f.transitionTo(StateNoSession)
	case UiCancel:
		f.transitionTo(StateRunning)
	case Timeout:
		f.transitionTo(StateRunning)
	case TagPresence:
		// Tag absence during a takeover prompt leaves the prompt in place
		// (spec.md section 4.6).
	}
}

// transitionTo moves the FSM to newState, firing Active's on-exit/on-enter
// only when the transition crosses the Active boundary (see isActiveChild).
func (f *FSM) transitionTo(newState StateID) {
	fromActive := isActiveChild(f.state)
	toActive := isActiveChild(newState)

	if fromActive && !toActive {
		f.exitActive()
	}
	f.state = newState
	if !fromActive && toActive {
		f.enterActive()
	}

	if newState == StateNoSession && f.hasPendingTakeover {
		f.hasPendingTakeover = false
		f.active = f.pending
		f.pending = corecfg.SessionInfo{}
		f.transitionTo(StateRunning)
	}
}

func (f *FSM) enterActive() {
	f.notifySessionStarted(f.active)
}

func (f *FSM) exitActive() {
	usage := corecfg.MachineUsage{
		UserID:   f.active.UserID,
		AuthID:   f.active.AuthID,
		CheckIn:  f.active.StartedAt,
		CheckOut: f.now(),
		Reason:   f.checkoutReason,
	}
	f.notifySessionEnded(f.active, usage)
	f.active = corecfg.SessionInfo{}
}

func (f *FSM) notifySessionStarted(info corecfg.SessionInfo) {
	for _, o := range f.observers {
		o.OnSessionStarted(info)
	}
}

func (f *FSM) notifySessionEnded(info corecfg.SessionInfo, usage corecfg.MachineUsage) {
	for _, o := range f.observers {
		o.OnSessionEnded(info, usage)
	}
}

func (f *FSM) syncSnapshotLocked() {
	snap := corecfg.SessionSnapshot{
		State:           toSessionStateID(f.state),
		Active:          f.active,
		HasActive:       isActiveChild(f.state),
		TagPresent:      f.tagPresent,
		TagPresentSince: f.tagPresentSince,
		PendingSince:    f.pendingSince,
		PendingDeadline: f.pendingDeadline,
	}
	f.snapMu.Lock()
	f.snapshot = snap
	f.snapMu.Unlock()
}
