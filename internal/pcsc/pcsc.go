// Package pcsc adapts a PC/SC reader into the ntag424.TimedCard interface
// and exposes reader presence events for the verifier pipeline's tag-detect
// step (spec.md section 4.5 step 1).
package pcsc

import (
	"context"
	"fmt"
	"time"

	"github.com/ebfe/scard"
)

// Connection wraps one PC/SC card connection, grounded on
// barnettlynn-nfctools/pkg/ntag424/pcsc.go's Connect/Close/Transmit, extended
// with TransmitContext so it satisfies ntag424.TimedCard.
type Connection struct {
	ctx       *scard.Context
	card      *scard.Card
	reader    string
	readerIdx int
}

// Connect establishes a shared-mode connection to the reader at readerIndex.
func Connect(readerIndex int) (*Connection, error) {
	ctx, err := scard.EstablishContext()
	if err != nil {
		return nil, fmt.Errorf("pcsc: EstablishContext: %w", err)
	}

	readers, err := ctx.ListReaders()
	if err != nil || len(readers) == 0 {
		ctx.Release()
		return nil, fmt.Errorf("pcsc: no readers found: %w", err)
	}
	if readerIndex < 0 || readerIndex >= len(readers) {
		ctx.Release()
		return nil, fmt.Errorf("pcsc: reader index out of range (0..%d)", len(readers)-1)
	}

	reader := readers[readerIndex]
	card, err := ctx.Connect(reader, scard.ShareShared, scard.ProtocolAny)
	if err != nil {
		ctx.Release()
		return nil, fmt.Errorf("pcsc: connect: %w", err)
	}

	return &Connection{ctx: ctx, card: card, reader: reader, readerIdx: readerIndex}, nil
}

// Close disconnects the card and releases the PC/SC context.
func (c *Connection) Close() {
	if c == nil {
		return
	}
	if c.card != nil {
		_ = c.card.Disconnect(scard.LeaveCard)
	}
	if c.ctx != nil {
		_ = c.ctx.Release()
	}
}

// Transmit implements ntag424.Card.
func (c *Connection) Transmit(apdu []byte) ([]byte, error) {
	if c == nil || c.card == nil {
		return nil, fmt.Errorf("pcsc: connection not established")
	}
	return c.card.Transmit(apdu)
}

// TransmitContext implements ntag424.TimedCard: it races Transmit against
// ctx's deadline. The scard binding has no native cancellation, so a missed
// deadline leaves the underlying call running; the caller has already moved
// on and the next Connect cycle starts fresh.
func (c *Connection) TransmitContext(ctx context.Context, apdu []byte) ([]byte, error) {
	type result struct {
		resp []byte
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		resp, err := c.Transmit(apdu)
		ch <- result{resp, err}
	}()
	select {
	case r := <-ch:
		return r.resp, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Reader returns the PC/SC reader name this connection is bound to.
func (c *Connection) Reader() string { return c.reader }

// ReaderPresence reports whether readerName currently has a card present,
// using PC/SC's GetStatusChange — the event-source for the verifier
// pipeline's "tag present" transition (spec.md section 4.5 step 1).
func ReaderPresence(ctx *scard.Context, readerName string, timeout time.Duration) (bool, error) {
	states := []scard.ReaderState{{Reader: readerName, CurrentState: scard.StateUnaware}}
	if err := ctx.GetStatusChange(states, timeout); err != nil {
		return false, fmt.Errorf("pcsc: GetStatusChange: %w", err)
	}
	return states[0].EventState&scard.StatePresent != 0, nil
}

// WatchPresence polls ReaderPresence on an interval and sends each observed
// transition (true=inserted, false=removed) on the returned channel until
// ctx is cancelled. This is the reader-facing half of the verifier's
// tag-detect event source (spec.md section 4.5 step 1); it deliberately
// polls rather than blocking indefinitely in GetStatusChange so ctx
// cancellation is always honored promptly.
func WatchPresence(ctx context.Context, pcscCtx *scard.Context, readerName string, poll time.Duration) <-chan bool {
	out := make(chan bool, 1)
	go func() {
		defer close(out)
		var last bool
		var haveLast bool
		ticker := time.NewTicker(poll)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				present, err := ReaderPresence(pcscCtx, readerName, poll)
				if err != nil {
					continue
				}
				if !haveLast || present != last {
					haveLast = true
					last = present
					select {
					case out <- present:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()
	return out
}
