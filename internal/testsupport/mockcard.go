// Package testsupport provides in-memory doubles for the external
// collaborators named in spec.md section 6 (reader, cloud) plus a software
// NTAG424 DNA simulator, so pkg/ntag424, pkg/verifier, and pkg/session can
// be exercised without real hardware. Grounded on barnettlynn-nfctools's
// emulator/main.go (a software tag used for interactive testing of the same
// protocol) and spec.md section 8's "reference tag configured with K".
package testsupport

import (
	"bytes"
	"crypto/rand"
	"io"

	"github.com/werkstattwaedi/accesscore/pkg/ntag424"
)

// MockFile is one application file on a MockTag: its bytes and the
// communication mode the (simulated) access rights require for it.
type MockFile struct {
	Data []byte
	Mode ntag424.CommMode
}

// MockTag is a software NTAG424 DNA simulator implementing the same wire
// protocol as a real tag: SelectApplication, AuthenticateEV2First,
// GetCardUid, ReadData, WriteData, ChangeKey, all via Transmit so it
// satisfies ntag424.Card directly.
type MockTag struct {
	Keys    [16][16]byte
	RealUID []byte // up to 7 bytes
	Files   map[byte]*MockFile

	appSelected bool

	// authenticating holds Phase-1 state between the two Authenticate APDUs.
	authenticating bool
	authKeyNo      byte
	rndB           []byte

	// session holds the active SecureMessaging state once Phase 2 succeeds.
	sessionActive     bool
	sessionKeyNo      byte
	encKey, macKey    []byte
	ti                []byte
	cmdCtr            uint16
}

// NewMockTag builds a simulator with key slot 0 set to key and UID uid.
func NewMockTag(key []byte, uid []byte) *MockTag {
	t := &MockTag{RealUID: uid, Files: map[byte]*MockFile{}}
	copy(t.Keys[0][:], key)
	return t
}

// SetKey installs key at slot keyNo.
func (t *MockTag) SetKey(keyNo byte, key []byte) { copy(t.Keys[keyNo][:], key) }

// SetFile installs fileNo with the given data and required comm mode.
func (t *MockTag) SetFile(fileNo byte, data []byte, mode ntag424.CommMode) {
	t.Files[fileNo] = &MockFile{Data: append([]byte{}, data...), Mode: mode}
}

func sw(resp []byte, hi, lo byte) []byte { return append(resp, hi, lo) }

// Transmit implements ntag424.Card.
func (t *MockTag) Transmit(apdu []byte) ([]byte, error) {
	if len(apdu) < 4 {
		return sw(nil, 0x6F, 0x00), nil
	}
	cla, ins := apdu[0], apdu[1]

	switch {
	case cla == 0x00 && ins == 0xA4:
		return t.handleSelect(apdu)
	case cla == 0x90 && ins == 0x71:
		return t.handleAuthPhase1(apdu)
	case cla == 0x90 && ins == 0xAF:
		return t.handleAuthPhase2(apdu)
	case cla == 0x90 && ins == 0x51:
		return t.handleGetCardUid(apdu)
	case cla == 0x90 && ins == 0xAD:
		return t.handleReadData(apdu)
	case cla == 0x90 && ins == 0x8D:
		return t.handleWriteData(apdu)
	case cla == 0x90 && ins == 0xC4:
		return t.handleChangeKey(apdu)
	default:
		return sw(nil, 0x91, 0x1C), nil
	}
}

func apduBody(apdu []byte) []byte {
	// CLA INS P1 P2 Lc <data> Le : Lc at index 4, data follows, trailing Le.
	if len(apdu) < 5 {
		return nil
	}
	lc := int(apdu[4])
	if len(apdu) < 5+lc {
		return nil
	}
	return apdu[5 : 5+lc]
}

func (t *MockTag) handleSelect(apdu []byte) ([]byte, error) {
	t.appSelected = true
	t.sessionActive = false
	return sw(nil, 0x90, 0x00), nil
}

func (t *MockTag) handleAuthPhase1(apdu []byte) ([]byte, error) {
	data := apduBody(apdu)
	if len(data) != 2 {
		return sw(nil, 0x91, 0x7E), nil
	}
	keyNo := data[0]
	key := t.Keys[keyNo][:]

	rndB := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, rndB); err != nil {
		return sw(nil, 0x91, 0xCA), nil
	}
	iv0 := make([]byte, 16)
	encRndB, err := ntag424.AesCbcEncrypt(key, iv0, rndB)
	if err != nil {
		return sw(nil, 0x91, 0xCA), nil
	}

	t.authenticating = true
	t.authKeyNo = keyNo
	t.rndB = rndB
	return sw(encRndB, 0x91, 0xAF), nil
}

func (t *MockTag) handleAuthPhase2(apdu []byte) ([]byte, error) {
	if !t.authenticating {
		return sw(nil, 0x91, 0xAE), nil
	}
	data := apduBody(apdu)
	if len(data) != 32 {
		t.authenticating = false
		return sw(nil, 0x91, 0x7E), nil
	}
	key := t.Keys[t.authKeyNo][:]
	iv0 := make([]byte, 16)
	dec, err := ntag424.AesCbcDecrypt(key, iv0, data)
	if err != nil {
		t.authenticating = false
		return sw(nil, 0x91, 0xCA), nil
	}
	rndA := dec[:16]
	rndBRotGot := dec[16:32]
	rndBRotWant := ntag424.RotateLeft1(t.rndB)
	if !bytes.Equal(rndBRotGot, rndBRotWant) {
		t.authenticating = false
		return sw(nil, 0x91, 0xAE), nil
	}

	encKey, macKey, err := ntag424.DeriveSessionKeys(key, rndA, t.rndB)
	if err != nil {
		t.authenticating = false
		return sw(nil, 0x91, 0xCA), nil
	}

	ti := make([]byte, 4)
	if _, err := io.ReadFull(rand.Reader, ti); err != nil {
		t.authenticating = false
		return sw(nil, 0x91, 0xCA), nil
	}
	rndARot := ntag424.RotateLeft1(rndA)
	plain := append(append([]byte{}, ti...), rndARot...)
	plain = append(plain, make([]byte, 12)...) // PICC capabilities (6) plus 6 filler bytes to 32, zero in the simulator
	enc, err := ntag424.AesCbcEncrypt(key, iv0, plain)
	if err != nil {
		t.authenticating = false
		return sw(nil, 0x91, 0xCA), nil
	}

	t.authenticating = false
	t.sessionActive = true
	t.sessionKeyNo = t.authKeyNo
	t.encKey, t.macKey, t.ti, t.cmdCtr = encKey, macKey, ti, 0
	return sw(enc, 0x91, 0x00), nil
}

// ivForCounter derives an IV the same way SecureMessaging does (AES-ECB of
// a one-block input), reusing AesCbcEncrypt with a zero IV: CBC over
// exactly one block is equivalent to ECB for that block, and pkg/ntag424's
// single-block ECB helper is unexported.
func (t *MockTag) ivForCounter(prefix0, prefix1 byte, counter uint16) ([]byte, error) {
	in := make([]byte, 16)
	in[0], in[1] = prefix0, prefix1
	copy(in[2:6], t.ti)
	in[6] = byte(counter & 0xFF)
	in[7] = byte((counter >> 8) & 0xFF)
	return ntag424.AesCbcEncrypt(t.encKey, make([]byte, 16), in)
}

func (t *MockTag) commandMAC(cmd byte, header, data []byte) []byte {
	in := make([]byte, 0, 7+len(header)+len(data))
	in = append(in, cmd, byte(t.cmdCtr&0xFF), byte((t.cmdCtr>>8)&0xFF))
	in = append(in, t.ti...)
	in = append(in, header...)
	in = append(in, data...)
	mac, _ := ntag424.AesCmac(t.macKey, in)
	return truncateOdd(mac)
}

func (t *MockTag) responseMAC(code byte, counter uint16, data []byte) []byte {
	in := make([]byte, 0, 7+len(data))
	in = append(in, code, byte(counter&0xFF), byte((counter>>8)&0xFF))
	in = append(in, t.ti...)
	in = append(in, data...)
	mac, _ := ntag424.AesCmac(t.macKey, in)
	return truncateOdd(mac)
}

func truncateOdd(mac []byte) []byte {
	out := make([]byte, 0, 8)
	for i := 1; i < 16; i += 2 {
		out = append(out, mac[i])
	}
	return out
}

func (t *MockTag) handleGetCardUid(apdu []byte) ([]byte, error) {
	if !t.sessionActive {
		return sw(nil, 0x91, 0xAE), nil
	}
	t.cmdCtr++
	iv, _ := t.ivForCounter(0x5A, 0xA5, t.cmdCtr)
	padded := ntag424.PadISO7816_4(t.RealUID)
	encUID, err := ntag424.AesCbcEncrypt(t.encKey, iv, padded)
	if err != nil {
		return sw(nil, 0x91, 0xCA), nil
	}
	mac := t.responseMAC(0x00, t.cmdCtr, encUID)
	resp := append(append([]byte{}, encUID...), mac...)
	return sw(resp, 0x91, 0x00), nil
}

func parseHeader(data []byte) (fileNo byte, offset, length int, ok bool) {
	if len(data) < 7 {
		return 0, 0, 0, false
	}
	fileNo = data[0]
	offset = int(data[1]) | int(data[2])<<8 | int(data[3])<<16
	length = int(data[4]) | int(data[5])<<8 | int(data[6])<<16
	return fileNo, offset, length, true
}

func (t *MockTag) handleReadData(apdu []byte) ([]byte, error) {
	data := apduBody(apdu)
	fileNo, offset, length, ok := parseHeader(data)
	if !ok {
		return sw(nil, 0x91, 0x7E), nil
	}
	f, exists := t.Files[fileNo]
	if !exists {
		return sw(nil, 0x91, 0x40), nil
	}
	if f.Mode != ntag424.CommPlain && !t.sessionActive {
		return sw(nil, 0x91, 0xAE), nil
	}
	if f.Mode != ntag424.CommPlain {
		header := data[:7]
		mac := data[7:]
		want := t.commandMAC(0xAD, header, nil)
		if !bytes.Equal(mac, want) {
			return sw(nil, 0x91, 0xAE), nil
		}
	}

	end := offset + length
	if end > len(f.Data) {
		return sw(nil, 0x91, 0x1C), nil
	}
	chunk := f.Data[offset:end]

	if f.Mode == ntag424.CommPlain {
		return sw(chunk, 0x91, 0x00), nil
	}

	t.cmdCtr++
	var payload []byte
	if f.Mode == ntag424.CommFull {
		iv, _ := t.ivForCounter(0x5A, 0xA5, t.cmdCtr)
		enc, err := ntag424.AesCbcEncrypt(t.encKey, iv, ntag424.PadISO7816_4(chunk))
		if err != nil {
			return sw(nil, 0x91, 0xCA), nil
		}
		payload = enc
	} else {
		payload = chunk
	}
	mac := t.responseMAC(0x00, t.cmdCtr, payload)
	resp := append(append([]byte{}, payload...), mac...)
	return sw(resp, 0x91, 0x00), nil
}

func (t *MockTag) handleWriteData(apdu []byte) ([]byte, error) {
	data := apduBody(apdu)
	_, offset, length, ok := parseHeader(data)
	if !ok || len(data) < 7 {
		return sw(nil, 0x91, 0x7E), nil
	}
	fileNo := data[0]
	f, exists := t.Files[fileNo]
	if !exists {
		return sw(nil, 0x91, 0x40), nil
	}
	if f.Mode != ntag424.CommPlain && !t.sessionActive {
		return sw(nil, 0x91, 0xAE), nil
	}

	header := data[:7]
	rest := data[7:]

	var plain []byte
	switch f.Mode {
	case ntag424.CommPlain:
		plain = rest[:length]
	case ntag424.CommMAC:
		body := rest[:len(rest)-8]
		mac := rest[len(rest)-8:]
		want := t.commandMAC(0x8D, header, body)
		if !bytes.Equal(mac, want) {
			return sw(nil, 0x91, 0xAE), nil
		}
		plain = body
	case ntag424.CommFull:
		mac := rest[len(rest)-8:]
		encData := rest[:len(rest)-8]
		want := t.commandMAC(0x8D, header, encData)
		if !bytes.Equal(mac, want) {
			return sw(nil, 0x91, 0xAE), nil
		}
		iv, _ := t.ivForCounter(0xA5, 0x5A, t.cmdCtr)
		dec, err := ntag424.AesCbcDecrypt(t.encKey, iv, encData)
		if err != nil {
			return sw(nil, 0x91, 0xCA), nil
		}
		unpadded, err := ntag424.UnpadISO7816_4(dec)
		if err != nil {
			return sw(nil, 0x91, 0x1E), nil
		}
		plain = unpadded
	}

	end := offset + len(plain)
	if end > len(f.Data) {
		grown := make([]byte, end)
		copy(grown, f.Data)
		f.Data = grown
	}
	copy(f.Data[offset:end], plain)

	if f.Mode == ntag424.CommPlain {
		return sw(nil, 0x91, 0x00), nil
	}
	t.cmdCtr++
	mac := t.responseMAC(0x00, t.cmdCtr, nil)
	return sw(mac, 0x91, 0x00), nil
}

func (t *MockTag) handleChangeKey(apdu []byte) ([]byte, error) {
	if !t.sessionActive {
		return sw(nil, 0x91, 0xAE), nil
	}
	data := apduBody(apdu)
	if len(data) < 1+32+8 {
		return sw(nil, 0x91, 0x7E), nil
	}
	keyNo := data[0]
	encData := data[1 : 1+32]
	mac := data[1+32:]
	header := []byte{keyNo}
	want := t.commandMAC(0xC4, header, encData)
	if !bytes.Equal(mac, want) {
		return sw(nil, 0x91, 0xAE), nil
	}

	iv, _ := t.ivForCounter(0xA5, 0x5A, t.cmdCtr)
	dec, err := ntag424.AesCbcDecrypt(t.encKey, iv, encData)
	if err != nil {
		return sw(nil, 0x91, 0xCA), nil
	}
	plain, err := ntag424.UnpadISO7816_4(dec)
	if err != nil {
		return sw(nil, 0x91, 0x1E), nil
	}

	changingAuthKey := keyNo == t.sessionKeyNo
	if changingAuthKey {
		if len(plain) != 17 {
			return sw(nil, 0x91, 0x7E), nil
		}
		copy(t.Keys[keyNo][:], plain[:16])
		t.sessionActive = false
		return sw(nil, 0x91, 0x00), nil
	}

	if len(plain) != 21 {
		return sw(nil, 0x91, 0x7E), nil
	}
	oldKey := t.Keys[keyNo][:]
	newKey := make([]byte, 16)
	for i := 0; i < 16; i++ {
		newKey[i] = plain[i] ^ oldKey[i]
	}
	crc := ntag424.Crc32Nk(newKey)
	if !bytes.Equal(crc[:], plain[17:21]) {
		return sw(nil, 0x91, 0x9E), nil
	}
	copy(t.Keys[keyNo][:], newKey)

	t.cmdCtr++
	respMac := t.responseMAC(0x00, t.cmdCtr, nil)
	return sw(respMac, 0x91, 0x00), nil
}
