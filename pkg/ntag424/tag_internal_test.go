package ntag424

import (
	"testing"
	"time"

	"github.com/werkstattwaedi/accesscore/internal/corerr"
)

// panicCard is a Card whose Transmit must never be called: it proves a
// guard short-circuited before any APDU reached the transport.
type panicCard struct{ t *testing.T }

func (c panicCard) Transmit(apdu []byte) ([]byte, error) {
	c.t.Fatalf("unexpected APDU sent: %x", apdu)
	return nil, nil
}

func newOverflowedTag(t *testing.T) (*Tag, SessionToken) {
	tag := &Tag{
		card:                   panicCard{t},
		timeout:                time.Second,
		sm:                     NewSecureMessaging(testSessionKeys(t)),
		authenticatedKeyNumber: 2,
		authSerial:             1,
	}
	tag.sm.cmdCtr = maxCmdCtr
	return tag, SessionToken{KeyNumber: 2, AuthSerial: 1}
}

// TestCounterOverflowRejectsBeforeTransmit checks spec.md section 8
// scenario 6: a SecureMessaging at cmd_ctr=0xFFFF makes every authenticated
// operation fail with ResourceExhausted without sending an APDU.
func TestCounterOverflowRejectsBeforeTransmit(t *testing.T) {
	t.Run("GetCardUid", func(t *testing.T) {
		tag, tok := newOverflowedTag(t)
		_, err := tag.GetCardUid(tok)
		if corerr.CodeOf(err) != corerr.ResourceExhausted {
			t.Fatalf("err = %v, want ResourceExhausted", err)
		}
	})

	t.Run("ReadData full mode", func(t *testing.T) {
		tag, tok := newOverflowedTag(t)
		_, err := tag.ReadData(tok, 2, 0, 16, CommFull)
		if corerr.CodeOf(err) != corerr.ResourceExhausted {
			t.Fatalf("err = %v, want ResourceExhausted", err)
		}
	})

	t.Run("WriteData mac mode", func(t *testing.T) {
		tag, tok := newOverflowedTag(t)
		err := tag.WriteData(tok, 2, 0, []byte("hello"), CommMAC)
		if corerr.CodeOf(err) != corerr.ResourceExhausted {
			t.Fatalf("err = %v, want ResourceExhausted", err)
		}
	})

	t.Run("ChangeKey", func(t *testing.T) {
		tag, tok := newOverflowedTag(t)
		newKey := make([]byte, 16)
		err := tag.ChangeKey(tok, 2, newKey, nil, 1)
		if corerr.CodeOf(err) != corerr.ResourceExhausted {
			t.Fatalf("err = %v, want ResourceExhausted", err)
		}
	})
}

// TestStaleTokenRejectedWithoutTransmit checks that a SessionToken from a
// previous authentication epoch is rejected by checkToken before any APDU
// is built, independent of the counter-overflow guard.
func TestStaleTokenRejectedWithoutTransmit(t *testing.T) {
	tag := &Tag{
		card:                   panicCard{t},
		timeout:                time.Second,
		sm:                     NewSecureMessaging(testSessionKeys(t)),
		authenticatedKeyNumber: 2,
		authSerial:             5,
	}
	staleTok := SessionToken{KeyNumber: 2, AuthSerial: 4}

	if _, err := tag.GetCardUid(staleTok); corerr.CodeOf(err) != corerr.FailedPrecondition {
		t.Fatalf("GetCardUid: err = %v, want FailedPrecondition", err)
	}
	if err := tag.WriteData(staleTok, 2, 0, []byte("x"), CommMAC); corerr.CodeOf(err) != corerr.FailedPrecondition {
		t.Fatalf("WriteData: err = %v, want FailedPrecondition", err)
	}
}

// TestCheckTokenRejectsWithoutActiveSession checks that any token is
// rejected by a Tag that has no SecureMessaging context installed.
func TestCheckTokenRejectsWithoutActiveSession(t *testing.T) {
	tag := NewTag(panicCard{t})
	tok := SessionToken{KeyNumber: 1, AuthSerial: 1}
	if err := tag.checkToken(tok); corerr.CodeOf(err) != corerr.FailedPrecondition {
		t.Fatalf("err = %v, want FailedPrecondition", err)
	}
}
