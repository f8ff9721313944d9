package ntag424

import (
	"context"
	"time"

	"github.com/werkstattwaedi/accesscore/internal/corerr"
)

// Card abstracts card transmit behavior for real PC/SC cards and test
// doubles, unchanged from the teacher's interface.
type Card interface {
	Transmit(apdu []byte) ([]byte, error)
}

// TimedCard is a Card that can bound a transmit with a deadline. The PC/SC
// adapter (internal/pcsc) implements it; mock cards used in tests satisfy
// plain Card and get the default timeout behavior from transmit below.
type TimedCard interface {
	Card
	TransmitContext(ctx context.Context, apdu []byte) ([]byte, error)
}

// DefaultCommandTimeout is the 500 ms transport timeout spec.md section 4.3
// applies to every tag-facing command when the caller does not override it.
const DefaultCommandTimeout = 500 * time.Millisecond

// transmit sends an APDU to the card, bounding it by timeout when the card
// supports TransmitContext, and extracts the status word. The response does
// not include the trailing SW bytes.
func transmit(card Card, apdu []byte, timeout time.Duration) ([]byte, uint16, error) {
	var resp []byte
	var err error
	if tc, ok := card.(TimedCard); ok {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		resp, err = tc.TransmitContext(ctx, apdu)
	} else {
		resp, err = card.Transmit(apdu)
	}
	if err != nil {
		return nil, 0, corerr.Wrap(corerr.Unavailable, "ntag424.transmit", err)
	}
	if len(resp) < 2 {
		return nil, 0, corerr.New(corerr.DataLoss, "ntag424.transmit")
	}
	sw := uint16(resp[len(resp)-2])<<8 | uint16(resp[len(resp)-1])
	return resp[:len(resp)-2], sw, nil
}

// GetUID retrieves the card UID via the ISO 7816 GET DATA command
// (FF CA 00 00), trying the wildcard length then the specific 4-byte form.
// This is a PICC-level read available before any DESFire authentication;
// the verifier pipeline uses the reader-reported UID for pre-auth metadata
// and GetCardUid's authenticated result as ground truth after Authenticate.
func GetUID(card Card, timeout time.Duration) ([]byte, error) {
	for _, le := range []byte{0x00, 0x04} {
		apdu := []byte{0xFF, 0xCA, 0x00, 0x00, le}
		data, sw, err := transmit(card, apdu, timeout)
		if err == nil && swOK(sw) && len(data) > 0 {
			return data, nil
		}
	}
	return nil, corerr.New(corerr.NotFound, "ntag424.GetUID")
}
