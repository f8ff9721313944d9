package testsupport

import (
	"context"

	"github.com/werkstattwaedi/accesscore/pkg/verifier"
)

// MockReader is a scriptable double for spec.md section 6's Reader
// collaborator: a queue of events plus per-tag Card access, with no
// hardware dependency. There is no teacher analog for a reader-event
// stream; this is grounded directly on the External Interfaces section and
// produces pkg/verifier's own Event type so it satisfies verifier.Reader
// without an adapter.
type MockReader struct {
	events chan verifier.Event
}

// NewMockReader builds a reader with a small buffered event queue.
func NewMockReader() *MockReader {
	return &MockReader{events: make(chan verifier.Event, 16)}
}

// PushArrived enqueues a tag-arrived event for a tag that supports
// ISO 14443-4, backed by card for Transmit.
func (r *MockReader) PushArrived(uid []byte, card *MockTag) {
	r.events <- verifier.Event{Kind: verifier.EventArrived, UID: uid, SupportsISO14443_4: true, Card: card}
}

// PushArrivedNonISO14443_4 enqueues an arrival for a tag that does not
// support ISO 14443-4 (spec.md section 4.5 step 1's unknown_tag path).
func (r *MockReader) PushArrivedNonISO14443_4(uid []byte) {
	r.events <- verifier.Event{Kind: verifier.EventArrived, UID: uid, SupportsISO14443_4: false}
}

// PushDeparted enqueues a tag-departed event.
func (r *MockReader) PushDeparted() {
	r.events <- verifier.Event{Kind: verifier.EventDeparted}
}

// Events implements verifier.Reader, closing the returned channel when ctx
// is done.
func (r *MockReader) Events(ctx context.Context) <-chan verifier.Event {
	out := make(chan verifier.Event)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-r.events:
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}
