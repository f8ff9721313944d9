// Package diag holds field-diagnostic helpers that are useful when
// provisioning or troubleshooting a terminal but must never run on the
// verifier's authorization hot path: trying multiple key slots, tolerating
// an all-zero factory key, and reading version/serial data before any
// authentication. Adapted from barnettlynn-nfctools's
// pkg/ntag424/{auth.go,version.go} AuthenticateWithFallback/DiagnoseAuthSlots
// /GetVersion, re-targeted at the new ntag424.Tag/KeyProvider split.
package diag

import (
	"crypto/rand"
	"fmt"
	"io"
	"log/slog"

	"github.com/werkstattwaedi/accesscore/internal/corerr"
	"github.com/werkstattwaedi/accesscore/pkg/corecfg"
	"github.com/werkstattwaedi/accesscore/pkg/ntag424"
)

// rawKeyProvider implements ntag424.KeyProvider for a single known raw AES
// key, performing the EV2First math directly via ntag424's exported
// primitives. It exists only for diagnostics; pkg/keyprovider's Local
// provider is the production equivalent and additionally never exposes the
// raw key outside the authentication boundary.
type rawKeyProvider struct {
	keyNo byte
	key   []byte
	rndA  []byte
	rndB  []byte
}

func (p *rawKeyProvider) KeyNumber() byte { return p.keyNo }

func (p *rawKeyProvider) CreateChallenge(encryptedRndB []byte) ([]byte, error) {
	iv0 := make([]byte, 16)
	rndB, err := ntag424.AesCbcDecrypt(p.key, iv0, encryptedRndB)
	if err != nil {
		return nil, err
	}
	p.rndB = rndB
	p.rndA = make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, p.rndA); err != nil {
		return nil, err
	}
	rndBRot := ntag424.RotateLeft1(rndB)
	plain := append(append([]byte{}, p.rndA...), rndBRot...)
	return ntag424.AesCbcEncrypt(p.key, iv0, plain)
}

func (p *rawKeyProvider) VerifyAndComputeSessionKeys(encryptedPart3 []byte) (corecfg.SessionKeys, error) {
	iv0 := make([]byte, 16)
	dec, err := ntag424.AesCbcDecrypt(p.key, iv0, encryptedPart3)
	if err != nil {
		return corecfg.SessionKeys{}, err
	}
	ti := dec[:4]
	rndAPrime := dec[4:20]
	if !ntag424.VerifyRndAPrime(p.rndA, rndAPrime) {
		return corecfg.SessionKeys{}, corerr.New(corerr.Unauthenticated, "diag.rawKeyProvider.VerifyAndComputeSessionKeys")
	}
	encKey, macKey, err := ntag424.DeriveSessionKeys(p.key, p.rndA, p.rndB)
	if err != nil {
		return corecfg.SessionKeys{}, err
	}
	var keys corecfg.SessionKeys
	copy(keys.EncKey[:], encKey)
	copy(keys.MacKey[:], macKey)
	copy(keys.TI[:], ti)
	return keys, nil
}

func (p *rawKeyProvider) CancelAuthentication() { p.rndA = nil }

// AuthSlotResult holds the outcome of one trial authentication.
type AuthSlotResult struct {
	Slot    byte
	Success bool
	Err     error
}

// DiagnoseAuthSlots attempts Tag.Authenticate against key on every slot in
// slots, in order, reporting each outcome without stopping at the first
// success. Callers must SelectApplication once beforehand; this does not
// repeat it between attempts.
func DiagnoseAuthSlots(tag *ntag424.Tag, key []byte, slots []byte) []AuthSlotResult {
	results := make([]AuthSlotResult, 0, len(slots))
	for _, slot := range slots {
		_, err := tag.Authenticate(&rawKeyProvider{keyNo: slot, key: key})
		results = append(results, AuthSlotResult{Slot: slot, Success: err == nil, Err: err})
		tag.ClearSession()
	}
	return results
}

// AuthenticateWithFallback tries, in order: keyNo with key, altKeyNo with
// key (if different), slot 0 with key (if neither keyNo nor altKeyNo is 0),
// and finally slot 0 with an all-zero key (if key is not already all-zero).
// It returns the token from whichever attempt succeeds along with the
// effective key/slot, for logging during commissioning.
func AuthenticateWithFallback(tag *ntag424.Tag, key []byte, keyNo, altKeyNo byte) (ntag424.SessionToken, []byte, byte, error) {
	zeroKey := make([]byte, 16)
	type attempt struct {
		key   []byte
		keyNo byte
		label string
	}
	attempts := []attempt{{key: key, keyNo: keyNo, label: fmt.Sprintf("keyno %d (provided)", keyNo)}}
	if altKeyNo != keyNo {
		attempts = append(attempts, attempt{key: key, keyNo: altKeyNo, label: fmt.Sprintf("keyno %d (alternate)", altKeyNo)})
	}
	if keyNo != 0 && altKeyNo != 0 {
		attempts = append(attempts, attempt{key: key, keyNo: 0, label: "keyno 0 (same key)"})
	}
	if !isAllZero(key) {
		attempts = append(attempts, attempt{key: zeroKey, keyNo: 0, label: "keyno 0 (factory fallback)"})
	}

	var lastErr error
	for i, a := range attempts {
		tok, err := tag.Authenticate(&rawKeyProvider{keyNo: a.keyNo, key: a.key})
		if err == nil {
			slog.Info("diag: authenticated", "method", a.label)
			return tok, a.key, a.keyNo, nil
		}
		if i > 0 {
			slog.Warn("diag: auth attempt failed", "method", a.label, "error", err)
		}
		lastErr = err
	}
	return ntag424.SessionToken{}, nil, 0, lastErr
}

func isAllZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

// TagVersion holds the hardware/software version and fabrication data
// returned by DESFire GetVersion (INS 0x60), a three-part unauthenticated
// PICC-level exchange. Grounded on barnettlynn-nfctools's ro/card.go
// GetVersion.
type TagVersion struct {
	HWVendorID, HWType, HWSubType, HWMajorVer, HWMinorVer, HWStorageSize, HWProtocol byte
	SWVendorID, SWType, SWSubType, SWMajorVer, SWMinorVer, SWStorageSize, SWProtocol byte
	UID                                                                             []byte
	BatchNo                                                                         []byte
	FabKey                                                                          byte
	ProdYear                                                                        byte
	ProdWeek                                                                        byte
}

const (
	swMoreDataDiag = 0x91AF
	swOKDiag       = 0x9100
)

func transmitRaw(card ntag424.Card, apdu []byte) ([]byte, uint16, error) {
	resp, err := card.Transmit(apdu)
	if err != nil {
		return nil, 0, err
	}
	if len(resp) < 2 {
		return nil, 0, corerr.New(corerr.DataLoss, "diag.transmitRaw")
	}
	sw := uint16(resp[len(resp)-2])<<8 | uint16(resp[len(resp)-1])
	return resp[:len(resp)-2], sw, nil
}

// GetVersion retrieves version, UID, and batch/fabrication data from card
// before any authentication.
func GetVersion(card ntag424.Card) (*TagVersion, error) {
	const op = "diag.GetVersion"
	resp1, sw, err := transmitRaw(card, []byte{0x90, 0x60, 0x00, 0x00, 0x00})
	if err != nil {
		return nil, corerr.Wrap(corerr.Unavailable, op, err)
	}
	if sw != swMoreDataDiag || len(resp1) != 7 {
		return nil, corerr.New(corerr.DataLoss, op)
	}

	resp2, sw, err := transmitRaw(card, []byte{0x90, 0xAF, 0x00, 0x00, 0x00})
	if err != nil {
		return nil, corerr.Wrap(corerr.Unavailable, op, err)
	}
	if sw != swMoreDataDiag || len(resp2) != 7 {
		return nil, corerr.New(corerr.DataLoss, op)
	}

	resp3, sw, err := transmitRaw(card, []byte{0x90, 0xAF, 0x00, 0x00, 0x00})
	if err != nil {
		return nil, corerr.Wrap(corerr.Unavailable, op, err)
	}
	if sw != swOKDiag || len(resp3) != 14 {
		return nil, corerr.New(corerr.DataLoss, op)
	}

	return &TagVersion{
		HWVendorID: resp1[0], HWType: resp1[1], HWSubType: resp1[2],
		HWMajorVer: resp1[3], HWMinorVer: resp1[4], HWStorageSize: resp1[5], HWProtocol: resp1[6],
		SWVendorID: resp2[0], SWType: resp2[1], SWSubType: resp2[2],
		SWMajorVer: resp2[3], SWMinorVer: resp2[4], SWStorageSize: resp2[5], SWProtocol: resp2[6],
		UID: append([]byte{}, resp3[0:7]...), BatchNo: append([]byte{}, resp3[7:12]...),
		FabKey:   resp3[12],
		ProdYear: resp3[13] >> 4,
		ProdWeek: resp3[13] & 0x0F,
	}, nil
}
