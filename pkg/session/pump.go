package session

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/werkstattwaedi/accesscore/pkg/corecfg"
)

// UiAction is the single atomic action the UI thread may post between
// ticks (spec.md section 4.7).
type UiAction int32

const (
	UiActionNone UiAction = iota
	UiActionConfirm
	UiActionCancel
)

const (
	pendingPollInterval = 100 * time.Millisecond
	idlePollInterval    = 500 * time.Millisecond
)

// EventPump is the background cooperative task of spec.md section 4.7: it
// polls the FSM, drains a pending UI action, and derives HoldConfirmed/
// Timeout from elapsed time while a pending state is active.
type EventPump struct {
	fsm      *FSM
	uiAction atomic.Int32
	now      func() time.Time
}

// NewEventPump builds a pump driving fsm.
func NewEventPump(fsm *FSM) *EventPump {
	return &EventPump{fsm: fsm, now: time.Now}
}

// PostUiAction records the UI's most recent action, overwriting any action
// not yet drained by a tick (spec.md section 4.7: "a single atomic
// UiAction").
func (p *EventPump) PostUiAction(a UiAction) {
	p.uiAction.Store(int32(a))
}

// Run polls at 100ms while a pending state is active and 500ms otherwise,
// until ctx is done.
func (p *EventPump) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(p.interval()):
			p.Tick()
		}
	}
}

func (p *EventPump) interval() time.Duration {
	snap := p.fsm.GetSnapshot()
	if isPendingState(snap.State) {
		return pendingPollInterval
	}
	return idlePollInterval
}

func isPendingState(s corecfg.SessionStateID) bool {
	return s == corecfg.StateCheckoutPending || s == corecfg.StateTakeoverPending
}

// Tick runs one pump iteration: drain the UI action, then, while pending,
// deliver HoldConfirmed/Timeout as their conditions become true.
func (p *EventPump) Tick() {
	switch UiAction(p.uiAction.Swap(int32(UiActionNone))) {
	case UiActionConfirm:
		p.fsm.Receive(UiConfirm{})
	case UiActionCancel:
		p.fsm.Receive(UiCancel{})
	}

	snap := p.fsm.GetSnapshot()
	if !isPendingState(snap.State) {
		return
	}
	now := p.now()
	if snap.TagPresent && !snap.TagPresentSince.IsZero() && now.Sub(snap.TagPresentSince) >= p.fsm.holdDuration {
		p.fsm.Receive(HoldConfirmed{})
		snap = p.fsm.GetSnapshot()
	}
	if isPendingState(snap.State) && !snap.PendingDeadline.IsZero() && !now.Before(snap.PendingDeadline) {
		p.fsm.Receive(Timeout{})
	}
}
