package testsupport

import (
	"sync"

	"github.com/werkstattwaedi/accesscore/pkg/corecfg"
)

// RecordingObserver implements pkg/verifier.Observer, appending one label
// per callback so tests can assert against the literal observer traces
// spec.md section 8's end-to-end scenarios describe (e.g.
// "TagDetected -> Verifying -> TagVerified(...) -> Authorizing ->
// Authorized(...)").
type RecordingObserver struct {
	mu     sync.Mutex
	Events []string

	LastTagUID    corecfg.TagUid
	LastUserID    corecfg.Identifier
	LastUserLabel corecfg.UserLabel
	LastAuthID    corecfg.Identifier
}

func (o *RecordingObserver) record(s string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Events = append(o.Events, s)
}

func (o *RecordingObserver) OnTagDetected(uid corecfg.TagUid) { o.record("tag_detected:" + uid.Hex()) }
func (o *RecordingObserver) OnVerifying()                     { o.record("verifying") }
func (o *RecordingObserver) OnTagVerified(uid corecfg.TagUid) { o.record("tag_verified:" + uid.Hex()) }
func (o *RecordingObserver) OnUnknownTag()                    { o.record("unknown_tag") }
func (o *RecordingObserver) OnAuthorizing()                   { o.record("authorizing") }

func (o *RecordingObserver) OnAuthorized(tagUID corecfg.TagUid, userID corecfg.Identifier, userLabel corecfg.UserLabel, authID corecfg.Identifier) {
	o.mu.Lock()
	o.LastTagUID, o.LastUserID, o.LastUserLabel, o.LastAuthID = tagUID, userID, userLabel, authID
	o.mu.Unlock()
	o.record("authorized:" + userLabel.String())
}

func (o *RecordingObserver) OnUnauthorized() { o.record("unauthorized") }
func (o *RecordingObserver) OnTagRemoved()   { o.record("tag_removed") }

// Trace returns a copy of the recorded event labels in order.
func (o *RecordingObserver) Trace() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string{}, o.Events...)
}
