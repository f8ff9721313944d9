package ntag424

import (
	"time"

	"github.com/werkstattwaedi/accesscore/internal/corerr"
	"github.com/werkstattwaedi/accesscore/pkg/corecfg"
)

// KeyProvider is the polymorphic mutual-auth role described in spec.md
// section 4.4. pkg/keyprovider's Local and Cloud variants implement this
// interface; it is declared here (rather than in pkg/keyprovider) because
// Tag.Authenticate is its only caller and its signature only needs
// corecfg types, avoiding an import cycle.
type KeyProvider interface {
	// KeyNumber is the slot this provider authenticates against.
	KeyNumber() byte
	// CreateChallenge receives the tag's 16-byte encrypted RndB and returns
	// the 32-byte Part 2 payload to send back to the tag.
	CreateChallenge(encryptedRndB []byte) ([]byte, error)
	// VerifyAndComputeSessionKeys receives the tag's 32-byte encrypted
	// Part 3 and, on success, returns the derived session keys.
	VerifyAndComputeSessionKeys(encryptedPart3 []byte) (corecfg.SessionKeys, error)
	// CancelAuthentication discards any state held since CreateChallenge.
	// Called on every failure path between CreateChallenge and a
	// successful VerifyAndComputeSessionKeys.
	CancelAuthentication()
}

// CommMode is a file's communication mode for Read/WriteData (spec.md
// section 4.3's "Communication Modes").
type CommMode int

const (
	CommPlain CommMode = iota
	CommMAC
	CommFull
)

// SessionToken is proof of a successful Authenticate, checked against the
// owning Tag's current auth_serial at every authenticated call (spec.md
// section 3). It is freely copyable.
type SessionToken struct {
	KeyNumber  byte
	AuthSerial uint32
}

// Tag is the per-RF-encounter NTAG424 protocol object: APDU framing,
// SelectApplication, Authenticate, and the authenticated operations. One Tag
// is created per tag encounter (spec.md section 3's Ntag424Tag lifecycle).
type Tag struct {
	card    Card
	timeout time.Duration

	sm                     *SecureMessaging
	authenticatedKeyNumber byte
	authSerial             uint32
}

// NewTag wraps card with the default 500 ms command timeout.
func NewTag(card Card) *Tag {
	return &Tag{card: card, timeout: DefaultCommandTimeout}
}

// WithTimeout overrides the per-command transport timeout.
func (t *Tag) WithTimeout(d time.Duration) *Tag {
	t.timeout = d
	return t
}

func (t *Tag) transmit(apdu []byte) ([]byte, uint16, error) {
	return transmit(t.card, apdu, t.timeout)
}

// ntagAppAid is the NTAG424 DNA application AID, selected via the
// (CLA=0x00) ISO SELECT with P2=0x0C (no FCI template returned) — distinct
// from the teacher's NDEF-compatibility select, which uses P2=0x00 and
// returns an FCI for ISO READ BINARY consumers.
var ntagAppAid = []byte{0xD2, 0x76, 0x00, 0x00, 0x85, 0x01, 0x01}

// SelectApplication selects the NTAG424 DNA application, per spec.md
// section 4.3.
func (t *Tag) SelectApplication() error {
	apdu := make([]byte, 0, 5+len(ntagAppAid)+1)
	apdu = append(apdu, 0x00, 0xA4, 0x04, 0x0C, byte(len(ntagAppAid)))
	apdu = append(apdu, ntagAppAid...)
	apdu = append(apdu, 0x00)
	_, sw, err := t.transmit(apdu)
	if err != nil {
		return err
	}
	if !swOK(sw) {
		return newSWError("ntag424.SelectApplication", sw)
	}
	return nil
}

// ClearSession drops the active SecureMessaging context (zeroing its key
// material) without touching auth_serial — spec.md section 3's lifecycle
// invariant.
func (t *Tag) ClearSession() {
	if t.sm != nil {
		t.sm.Zero()
		t.sm = nil
	}
}

// Authenticated reports whether a SecureMessaging session is installed.
func (t *Tag) Authenticated() bool { return t.sm != nil }

// Authenticate performs the three-pass AuthenticateEV2First handshake
// against keyNo using provider, per spec.md section 4.3. On success it
// installs a fresh SecureMessaging context, increments auth_serial, and
// returns a SessionToken proving the caller authenticated this encounter.
func (t *Tag) Authenticate(provider KeyProvider) (SessionToken, error) {
	const op = "ntag424.Authenticate"
	keyNo := provider.KeyNumber()

	// Phase 1.
	apdu1 := []byte{0x90, 0x71, 0x00, 0x00, 0x02, keyNo, 0x00, 0x00}
	resp1, sw, err := t.transmit(apdu1)
	if err != nil {
		provider.CancelAuthentication()
		return SessionToken{}, corerr.Wrap(corerr.Unavailable, op, err)
	}
	if sw != swChaining || len(resp1) != 16 {
		provider.CancelAuthentication()
		return SessionToken{}, newSWError(op, sw)
	}

	part2, err := provider.CreateChallenge(resp1)
	if err != nil {
		provider.CancelAuthentication()
		return SessionToken{}, corerr.Wrap(corerr.Unauthenticated, op, err)
	}
	if len(part2) != 32 {
		provider.CancelAuthentication()
		return SessionToken{}, corerr.New(corerr.Internal, op)
	}

	// Phase 2.
	apdu2 := make([]byte, 0, 5+32+1)
	apdu2 = append(apdu2, 0x90, 0xAF, 0x00, 0x00, 0x20)
	apdu2 = append(apdu2, part2...)
	apdu2 = append(apdu2, 0x00)
	resp2, sw, err := t.transmit(apdu2)
	if err != nil {
		provider.CancelAuthentication()
		return SessionToken{}, corerr.Wrap(corerr.Unavailable, op, err)
	}
	if sw != swOKDesfire || len(resp2) != 32 {
		provider.CancelAuthentication()
		return SessionToken{}, newSWError(op, sw)
	}

	keys, err := provider.VerifyAndComputeSessionKeys(resp2)
	if err != nil {
		// provider.VerifyAndComputeSessionKeys is documented to have
		// already cleared its own state on rejection (spec.md section
		// 4.4), but CancelAuthentication is idempotent and spec.md section
		// 7 requires every KeyProvider failure path to call it before
		// surfacing.
		provider.CancelAuthentication()
		return SessionToken{}, corerr.Wrap(corerr.Unauthenticated, op, err)
	}

	t.sm = NewSecureMessaging(keys)
	keys.Zero()
	t.authenticatedKeyNumber = keyNo
	t.authSerial++
	return SessionToken{KeyNumber: keyNo, AuthSerial: t.authSerial}, nil
}

// checkToken validates tok against the tag's current authentication epoch.
func (t *Tag) checkToken(tok SessionToken) error {
	if t.sm == nil || tok.AuthSerial != t.authSerial {
		return corerr.New(corerr.FailedPrecondition, "ntag424.checkToken")
	}
	return nil
}

// GetCardUid retrieves the authenticated tag UID (spec.md section 4.3).
func (t *Tag) GetCardUid(tok SessionToken) (corecfg.TagUid, error) {
	const op = "ntag424.GetCardUid"
	if err := t.checkToken(tok); err != nil {
		return corecfg.TagUid{}, err
	}
	if t.sm.WillOverflow() {
		return corecfg.TagUid{}, corerr.New(corerr.ResourceExhausted, op)
	}

	mact, err := t.sm.commandMAC(0x51, nil, nil)
	if err != nil {
		return corecfg.TagUid{}, corerr.Wrap(corerr.Internal, op, err)
	}
	apdu := make([]byte, 0, 5+8+1)
	apdu = append(apdu, 0x90, 0x51, 0x00, 0x00, byte(len(mact)))
	apdu = append(apdu, mact...)
	apdu = append(apdu, 0x00)

	resp, sw, err := t.transmit(apdu)
	if err != nil {
		return corecfg.TagUid{}, corerr.Wrap(corerr.Unavailable, op, err)
	}
	if sw != swOKDesfire {
		return corecfg.TagUid{}, newSWError(op, sw)
	}
	if len(resp) != 16+8 {
		return corecfg.TagUid{}, corerr.New(corerr.DataLoss, op)
	}

	if err := t.sm.IncrementCounter(); err != nil {
		return corecfg.TagUid{}, err
	}
	ctr := t.sm.Counter()

	encUID := resp[:16]
	respMac := resp[16:]
	ok, err := t.sm.verifyResponseMAC(byte(sw&0xFF), ctr, encUID, respMac)
	if err != nil {
		return corecfg.TagUid{}, corerr.Wrap(corerr.Internal, op, err)
	}
	if !ok {
		return corecfg.TagUid{}, corerr.New(corerr.DataLoss, op)
	}

	dec, err := t.sm.decryptFull(encUID, ctr)
	if err != nil {
		return corecfg.TagUid{}, corerr.Wrap(corerr.DataLoss, op, err)
	}
	n := len(dec)
	if n > 7 {
		n = 7
	}
	return corecfg.NewTagUid(dec[:n]), nil
}

// fileOffsetLengthHeader builds the {file_no, offset_LE24, length_LE24} command header
// shared by ReadData and WriteData.
func fileOffsetLengthHeader(fileNo byte, offset, length int) []byte {
	return []byte{
		fileNo,
		byte(offset), byte(offset >> 8), byte(offset >> 16),
		byte(length), byte(length >> 8), byte(length >> 16),
	}
}

// ReadData reads length bytes at offset from fileNo under mode (spec.md
// section 4.3). Chaining (SW=91AF) is not implemented; callers are bounded
// to a single frame — about 47 plaintext bytes in Full mode.
func (t *Tag) ReadData(tok SessionToken, fileNo byte, offset, length int, mode CommMode) ([]byte, error) {
	const op = "ntag424.ReadData"
	if mode != CommPlain {
		if err := t.checkToken(tok); err != nil {
			return nil, err
		}
		if t.sm.WillOverflow() {
			return nil, corerr.New(corerr.ResourceExhausted, op)
		}
	}
	header := fileOffsetLengthHeader(fileNo, offset, length)

	var apdu []byte
	switch mode {
	case CommPlain:
		apdu = make([]byte, 0, 5+len(header)+1)
		apdu = append(apdu, 0x90, 0xAD, 0x00, 0x00, byte(len(header)))
		apdu = append(apdu, header...)
		apdu = append(apdu, 0x00)
	case CommMAC, CommFull:
		mact, err := t.sm.commandMAC(0xAD, header, nil)
		if err != nil {
			return nil, corerr.Wrap(corerr.Internal, op, err)
		}
		apdu = make([]byte, 0, 5+len(header)+8+1)
		apdu = append(apdu, 0x90, 0xAD, 0x00, 0x00, byte(len(header)+len(mact)))
		apdu = append(apdu, header...)
		apdu = append(apdu, mact...)
		apdu = append(apdu, 0x00)
	default:
		return nil, corerr.New(corerr.InvalidArgument, op)
	}

	resp, sw, err := t.transmit(apdu)
	if err != nil {
		return nil, corerr.Wrap(corerr.Unavailable, op, err)
	}
	if sw == swChaining {
		return nil, corerr.New(corerr.Unimplemented, op)
	}
	if sw != swOKDesfire {
		return nil, newSWError(op, sw)
	}

	if mode == CommPlain {
		return resp, nil
	}

	if err := t.sm.IncrementCounter(); err != nil {
		return nil, err
	}
	ctr := t.sm.Counter()

	if len(resp) < 8 {
		return nil, corerr.New(corerr.DataLoss, op)
	}
	dataLen := len(resp) - 8
	data := resp[:dataLen]
	respMac := resp[dataLen:]

	ok, err := t.sm.verifyResponseMAC(byte(sw&0xFF), ctr, data, respMac)
	if err != nil {
		return nil, corerr.Wrap(corerr.Internal, op, err)
	}
	if !ok {
		return nil, corerr.New(corerr.DataLoss, op)
	}

	if mode == CommMAC {
		return data, nil
	}
	return t.sm.decryptFull(data, ctr)
}

// WriteData writes data to fileNo at offset under mode (spec.md section 4.3).
func (t *Tag) WriteData(tok SessionToken, fileNo byte, offset int, data []byte, mode CommMode) error {
	const op = "ntag424.WriteData"
	if mode != CommPlain {
		if err := t.checkToken(tok); err != nil {
			return err
		}
		if t.sm.WillOverflow() {
			return corerr.New(corerr.ResourceExhausted, op)
		}
	}
	header := fileOffsetLengthHeader(fileNo, offset, len(data))

	var apdu []byte
	switch mode {
	case CommPlain:
		apdu = make([]byte, 0, 5+len(header)+len(data)+1)
		apdu = append(apdu, 0x90, 0x8D, 0x00, 0x00, byte(len(header)+len(data)))
		apdu = append(apdu, header...)
		apdu = append(apdu, data...)
		apdu = append(apdu, 0x00)
	case CommMAC:
		mact, err := t.sm.commandMAC(0x8D, header, data)
		if err != nil {
			return corerr.Wrap(corerr.Internal, op, err)
		}
		apdu = make([]byte, 0, 5+len(header)+len(data)+8+1)
		apdu = append(apdu, 0x90, 0x8D, 0x00, 0x00, byte(len(header)+len(data)+len(mact)))
		apdu = append(apdu, header...)
		apdu = append(apdu, data...)
		apdu = append(apdu, mact...)
		apdu = append(apdu, 0x00)
	case CommFull:
		encData, err := t.sm.encryptFull(data)
		if err != nil {
			return corerr.Wrap(corerr.Internal, op, err)
		}
		mact, err := t.sm.commandMAC(0x8D, header, encData)
		if err != nil {
			return corerr.Wrap(corerr.Internal, op, err)
		}
		dataLen := len(header) + len(encData) + len(mact)
		if dataLen > 255 {
			return corerr.New(corerr.InvalidArgument, op)
		}
		apdu = make([]byte, 0, 5+dataLen+1)
		apdu = append(apdu, 0x90, 0x8D, 0x00, 0x00, byte(dataLen))
		apdu = append(apdu, header...)
		apdu = append(apdu, encData...)
		apdu = append(apdu, mact...)
		apdu = append(apdu, 0x00)
	default:
		return corerr.New(corerr.InvalidArgument, op)
	}

	resp, sw, err := t.transmit(apdu)
	if err != nil {
		return corerr.Wrap(corerr.Unavailable, op, err)
	}
	if sw != swOKDesfire {
		return newSWError(op, sw)
	}

	if mode == CommPlain {
		return nil
	}

	if err := t.sm.IncrementCounter(); err != nil {
		return err
	}
	ctr := t.sm.Counter()

	ok, err := t.sm.verifyResponseMAC(byte(sw&0xFF), ctr, nil, resp)
	if err != nil {
		return corerr.Wrap(corerr.Internal, op, err)
	}
	if !ok {
		return corerr.New(corerr.DataLoss, op)
	}
	return nil
}

// ChangeKey changes keyNo to newKey, versioned keyVersion, using the active
// session (spec.md section 4.3). oldKey is required (and XORed in) for
// every slot except when keyNo equals the currently authenticated slot.
// After a successful change of the currently authenticated key, the tag
// invalidates its own session; the caller must call ClearSession and
// re-authenticate. Key material is zeroed on every exit path.
func (t *Tag) ChangeKey(tok SessionToken, keyNo byte, newKey, oldKey []byte, keyVersion byte) error {
	const op = "ntag424.ChangeKey"
	defer secureZero(newKey)
	defer secureZero(oldKey)

	if err := t.checkToken(tok); err != nil {
		return err
	}
	if t.sm.WillOverflow() {
		return corerr.New(corerr.ResourceExhausted, op)
	}
	if len(newKey) != 16 {
		return corerr.New(corerr.InvalidArgument, op)
	}
	changingAuthKey := keyNo == t.authenticatedKeyNumber

	var plain []byte
	if changingAuthKey {
		plain = make([]byte, 17)
		copy(plain, newKey)
		plain[16] = keyVersion
	} else {
		if len(oldKey) != 16 {
			return corerr.New(corerr.InvalidArgument, op)
		}
		plain = make([]byte, 21)
		for i := 0; i < 16; i++ {
			plain[i] = newKey[i] ^ oldKey[i]
		}
		plain[16] = keyVersion
		crc := crc32JamCRC(newKey)
		copy(plain[17:21], crc[:])
	}
	defer secureZero(plain)

	encData, err := t.sm.encryptFull(plain)
	if err != nil {
		return corerr.Wrap(corerr.Internal, op, err)
	}
	header := []byte{keyNo}
	mact, err := t.sm.commandMAC(0xC4, header, encData)
	if err != nil {
		return corerr.Wrap(corerr.Internal, op, err)
	}

	dataLen := len(header) + len(encData) + len(mact)
	apdu := make([]byte, 0, 5+dataLen+1)
	apdu = append(apdu, 0x90, 0xC4, 0x00, 0x00, byte(dataLen))
	apdu = append(apdu, header...)
	apdu = append(apdu, encData...)
	apdu = append(apdu, mact...)
	apdu = append(apdu, 0x00)

	resp, sw, err := t.transmit(apdu)
	if err != nil {
		return corerr.Wrap(corerr.Unavailable, op, err)
	}
	if sw != swOKDesfire {
		return newSWError(op, sw)
	}

	if changingAuthKey {
		// The tag invalidated its session; the reader must not touch the
		// counter or expect a response CMAC.
		t.ClearSession()
		return nil
	}

	if err := t.sm.IncrementCounter(); err != nil {
		return err
	}
	ctr := t.sm.Counter()
	ok, err := t.sm.verifyResponseMAC(byte(sw&0xFF), ctr, nil, resp)
	if err != nil {
		return corerr.Wrap(corerr.Internal, op, err)
	}
	if !ok {
		return corerr.New(corerr.DataLoss, op)
	}
	return nil
}
