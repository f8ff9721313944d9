package ntag424

import (
	"crypto/subtle"

	"github.com/werkstattwaedi/accesscore/internal/corerr"
	"github.com/werkstattwaedi/accesscore/pkg/corecfg"
)

// maxCmdCtr is the counter value at which IncrementCounter refuses to
// advance further (spec.md section 3: "an attempt to increment at 0xFFFF
// fails the operation").
const maxCmdCtr = 0xFFFF

// SecureMessaging is the crypto context for one authenticated DESFire
// session: IVCmd/IVResp derivation, command/response MAC framing, full-mode
// encrypt/decrypt, and counter management. It is mutated only by the Tag
// object that owns it, one authenticated command at a time (spec.md
// section 3). This splits the teacher's BuildSsmApdu/SsmCmdFull
// (pkg/ntag424/secure.go) into a pure crypto-context concern, separate from
// the APDU-framing concern in tag.go, matching spec.md section 2's separate
// "Secure-messaging context" (10%) and "NTAG424 tag object" (25%) budgets.
type SecureMessaging struct {
	encKey [16]byte
	macKey [16]byte
	ti     [4]byte
	cmdCtr uint16
}

// NewSecureMessaging installs a fresh context from session keys produced by
// a KeyProvider, with cmdCtr starting at 0.
func NewSecureMessaging(keys corecfg.SessionKeys) *SecureMessaging {
	sm := &SecureMessaging{}
	sm.encKey = keys.EncKey
	sm.macKey = keys.MacKey
	sm.ti = keys.TI
	sm.cmdCtr = 0
	return sm
}

// Counter reports the current command counter.
func (sm *SecureMessaging) Counter() uint16 { return sm.cmdCtr }

// Zero overwrites the session key material. Applied on every exit path that
// drops this context through ClearSession, including the ClearSession that
// follows a ChangeKey of the authenticated key.
func (sm *SecureMessaging) Zero() {
	if sm == nil {
		return
	}
	secureZero(sm.encKey[:])
	secureZero(sm.macKey[:])
	secureZero(sm.ti[:])
}

// IncrementCounter advances cmdCtr by one. It fails with ResourceExhausted
// if the counter is already at its maximum, without mutating state — the
// caller must re-Authenticate to continue (spec.md section 4.2/4.2 and the
// counter-overflow testable property in spec.md section 8).
func (sm *SecureMessaging) IncrementCounter() error {
	if sm.cmdCtr == maxCmdCtr {
		return corerr.New(corerr.ResourceExhausted, "ntag424.SecureMessaging.IncrementCounter")
	}
	sm.cmdCtr++
	return nil
}

// WillOverflow reports whether cmdCtr is already at its maximum, i.e.
// whether the command about to be framed would have no room left to
// IncrementCounter after the tag responds. Callers check this before
// transmitting so an over-the-limit attempt never reaches the wire
// (spec.md section 8's counter-overflow property: "no APDU is sent").
func (sm *SecureMessaging) WillOverflow() bool {
	return sm.cmdCtr == maxCmdCtr
}

// ivForCounter builds the IV input block:
// ECB(encKey, prefix0 prefix1 TI(4) counter_LE(2) 00x8).
func (sm *SecureMessaging) ivForCounter(prefix0, prefix1 byte, counter uint16) ([]byte, error) {
	in := make([]byte, 16)
	in[0], in[1] = prefix0, prefix1
	copy(in[2:6], sm.ti[:])
	in[6] = byte(counter & 0xFF)
	in[7] = byte((counter >> 8) & 0xFF)
	return aesECBEncryptBlock(sm.encKey[:], in)
}

// ivCmd derives IVCmd for the current (pre-increment) counter, prefix A5 5A.
func (sm *SecureMessaging) ivCmd() ([]byte, error) {
	return sm.ivForCounter(0xA5, 0x5A, sm.cmdCtr)
}

// ivResp derives IVResp for counter (the post-increment value — the tag
// advances its own counter before producing its response, per AN12196
// figure 9, and spec.md section 4.2 directs the reader to mirror that),
// prefix 5A A5.
func (sm *SecureMessaging) ivResp(counter uint16) ([]byte, error) {
	return sm.ivForCounter(0x5A, 0xA5, counter)
}

// encryptFull pads data with ISO 7816-4 padding and CBC-encrypts it under
// IVCmd.
func (sm *SecureMessaging) encryptFull(data []byte) ([]byte, error) {
	iv, err := sm.ivCmd()
	if err != nil {
		return nil, err
	}
	padded := padISO7816_4(data)
	return aesCBCEncrypt(sm.encKey[:], iv, padded)
}

// decryptFull CBC-decrypts encData under IVResp(counter) and strips ISO
// 7816-4 padding.
func (sm *SecureMessaging) decryptFull(encData []byte, counter uint16) ([]byte, error) {
	iv, err := sm.ivResp(counter)
	if err != nil {
		return nil, err
	}
	dec, err := aesCBCDecrypt(sm.encKey[:], iv, encData)
	if err != nil {
		return nil, err
	}
	return unpadISO7816_4(dec)
}

// commandMAC computes CMACt over cmd || cmdCtr_LE || TI || header || data,
// using the current (pre-increment) counter.
func (sm *SecureMessaging) commandMAC(cmd byte, header, data []byte) ([]byte, error) {
	in := make([]byte, 0, 7+len(header)+len(data))
	in = append(in, cmd)
	in = append(in, byte(sm.cmdCtr&0xFF), byte((sm.cmdCtr>>8)&0xFF))
	in = append(in, sm.ti[:]...)
	in = append(in, header...)
	in = append(in, data...)
	mac, err := aesCMAC(sm.macKey[:], in)
	if err != nil {
		return nil, err
	}
	return cmacTruncate(mac), nil
}

// responseMAC computes CMACt over responseCode || counter_LE || TI || data,
// using the post-increment counter (the value the tag used to produce the
// response).
func (sm *SecureMessaging) responseMAC(responseCode byte, counter uint16, data []byte) ([]byte, error) {
	in := make([]byte, 0, 7+len(data))
	in = append(in, responseCode)
	in = append(in, byte(counter&0xFF), byte((counter>>8)&0xFF))
	in = append(in, sm.ti[:]...)
	in = append(in, data...)
	mac, err := aesCMAC(sm.macKey[:], in)
	if err != nil {
		return nil, err
	}
	return cmacTruncate(mac), nil
}

// verifyResponseMAC constant-time compares got against the MAC computed
// over responseCode/counter/data.
func (sm *SecureMessaging) verifyResponseMAC(responseCode byte, counter uint16, data, got []byte) (bool, error) {
	want, err := sm.responseMAC(responseCode, counter, data)
	if err != nil {
		return false, err
	}
	if len(want) != len(got) {
		return false, nil
	}
	return subtle.ConstantTimeCompare(want, got) == 1, nil
}
