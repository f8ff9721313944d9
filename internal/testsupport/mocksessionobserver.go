package testsupport

import (
	"sync"

	"github.com/werkstattwaedi/accesscore/pkg/corecfg"
)

// RecordingSessionObserver implements pkg/session.Observer, recording each
// OnSessionStarted/OnSessionEnded call for assertions against spec.md
// section 8's "observer count invariant" and the literal end-to-end
// scenarios.
type RecordingSessionObserver struct {
	mu      sync.Mutex
	Started []corecfg.SessionInfo
	Ended   []EndedCall
}

// EndedCall pairs the SessionInfo and MachineUsage passed to one
// OnSessionEnded call.
type EndedCall struct {
	Info  corecfg.SessionInfo
	Usage corecfg.MachineUsage
}

func (o *RecordingSessionObserver) OnSessionStarted(info corecfg.SessionInfo) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Started = append(o.Started, info)
}

func (o *RecordingSessionObserver) OnSessionEnded(info corecfg.SessionInfo, usage corecfg.MachineUsage) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Ended = append(o.Ended, EndedCall{Info: info, Usage: usage})
}

// StartedCount and EndedCount report call counts for the observer count
// invariant (spec.md section 8).
func (o *RecordingSessionObserver) StartedCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.Started)
}

func (o *RecordingSessionObserver) EndedCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.Ended)
}
