package pcsc

import (
	"context"
	"log/slog"
	"time"

	"github.com/ebfe/scard"

	"github.com/werkstattwaedi/accesscore/pkg/ntag424"
	"github.com/werkstattwaedi/accesscore/pkg/verifier"
)

// presencePollInterval is how often WatchPresence samples GetStatusChange.
// Well under the 500ms "tag present, nothing pending" pump interval so a tap
// is never missed between polls.
const presencePollInterval = 200 * time.Millisecond

// Reader adapts a single PC/SC reader slot into verifier.Reader, translating
// card-insert/remove transitions into verifier.Event values (spec.md section
// 4.5 step 1, the "tag_detected" event source).
type Reader struct {
	readerIndex int
	timeout     time.Duration
}

// NewReader builds a Reader bound to the PC/SC reader at readerIndex.
// timeout bounds the GetUID read made on each arrival. The commands the
// verifier later sends through the event's Card use the ntag424 Tag's own
// timeout (DefaultCommandTimeout), not this value.
func NewReader(readerIndex int, timeout time.Duration) *Reader {
	return &Reader{readerIndex: readerIndex, timeout: timeout}
}

// Events implements verifier.Reader. It establishes its own PC/SC context,
// watches the bound reader slot for presence transitions, and on each
// arrival connects, reads the PICC UID, and checks protocol support before
// emitting the event — a card that never answers GetUID is reported as
// arrived without ISO14443-4 support so the verifier's unknown_tag path
// handles it uniformly with a wrong-key rejection.
func (r *Reader) Events(ctx context.Context) <-chan verifier.Event {
	out := make(chan verifier.Event, 4)
	go func() {
		defer close(out)

		pcscCtx, err := scard.EstablishContext()
		if err != nil {
			slog.Error("pcsc: EstablishContext failed", "error", err)
			return
		}
		defer pcscCtx.Release()

		readers, err := pcscCtx.ListReaders()
		if err != nil || r.readerIndex >= len(readers) {
			slog.Error("pcsc: reader index unavailable", "index", r.readerIndex, "error", err)
			return
		}
		readerName := readers[r.readerIndex]

		presence := WatchPresence(ctx, pcscCtx, readerName, presencePollInterval)
		for {
			select {
			case <-ctx.Done():
				return
			case present, ok := <-presence:
				if !ok {
					return
				}
				if !present {
					select {
					case out <- verifier.Event{Kind: verifier.EventDeparted}:
					case <-ctx.Done():
						return
					}
					continue
				}
				ev := r.buildArrivalEvent()
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

func (r *Reader) buildArrivalEvent() verifier.Event {
	conn, err := Connect(r.readerIndex)
	if err != nil {
		return verifier.Event{Kind: verifier.EventArrived, SupportsISO14443_4: false}
	}

	uid, err := ntag424.GetUID(conn, r.timeout)
	if err != nil {
		conn.Close()
		return verifier.Event{Kind: verifier.EventArrived, SupportsISO14443_4: false}
	}

	return verifier.Event{
		Kind:               verifier.EventArrived,
		UID:                uid,
		SupportsISO14443_4: true,
		Card:               &timedCardConn{conn},
	}
}

// timedCardConn narrows Connection to ntag424.Card/TimedCard without
// exposing Reader()/Close() on the verifier.Event's Card field.
type timedCardConn struct {
	*Connection
}
