// Package keyprovider supplies the two KeyProvider variants named in
// spec.md section 4.4: Local, which holds a diversified key directly, and
// Cloud, which delegates the Part 2/Part 3 cryptography to a remote
// service. Both implement ntag424.KeyProvider using the crypto primitives
// ntag424 exports for exactly this purpose (pkg/ntag424/primitives.go).
package keyprovider

import (
	"crypto/rand"
	"io"

	"github.com/werkstattwaedi/accesscore/internal/corerr"
	"github.com/werkstattwaedi/accesscore/pkg/corecfg"
	"github.com/werkstattwaedi/accesscore/pkg/ntag424"
)

// Local authenticates directly with a diversified AES key held by the
// terminal (spec.md section 4.4: "holds a diversified key directly;
// performs the full cryptographic exchange locally"). A Local is
// single-use: construct one per authentication attempt.
type Local struct {
	keyNo       byte
	key         [16]byte
	rndA        [16]byte
	pendingRndB [16]byte
}

// NewLocal copies key (which must be 16 bytes) for authentication on slot
// keyNo. The caller retains ownership of the original key slice.
func NewLocal(keyNo byte, key []byte) (*Local, error) {
	if len(key) != 16 {
		return nil, corerr.New(corerr.InvalidArgument, "keyprovider.NewLocal")
	}
	l := &Local{keyNo: keyNo}
	copy(l.key[:], key)
	return l, nil
}

func (l *Local) KeyNumber() byte { return l.keyNo }

func (l *Local) CreateChallenge(encryptedRndB []byte) ([]byte, error) {
	const op = "keyprovider.Local.CreateChallenge"
	if len(encryptedRndB) != 16 {
		return nil, corerr.New(corerr.InvalidArgument, op)
	}
	iv0 := make([]byte, 16)
	rndB, err := ntag424.AesCbcDecrypt(l.key[:], iv0, encryptedRndB)
	if err != nil {
		return nil, corerr.Wrap(corerr.Internal, op, err)
	}
	copy(l.pendingRndB[:], rndB)
	if _, err := io.ReadFull(rand.Reader, l.rndA[:]); err != nil {
		return nil, corerr.Wrap(corerr.Internal, op, err)
	}
	rndBRot := ntag424.RotateLeft1(rndB)
	plain := append(append([]byte{}, l.rndA[:]...), rndBRot...)
	enc, err := ntag424.AesCbcEncrypt(l.key[:], iv0, plain)
	if err != nil {
		return nil, corerr.Wrap(corerr.Internal, op, err)
	}
	return enc, nil
}

func (l *Local) VerifyAndComputeSessionKeys(encryptedPart3 []byte) (corecfg.SessionKeys, error) {
	const op = "keyprovider.Local.VerifyAndComputeSessionKeys"
	defer l.zeroNonce()
	if len(encryptedPart3) != 32 {
		return corecfg.SessionKeys{}, corerr.New(corerr.InvalidArgument, op)
	}
	iv0 := make([]byte, 16)
	dec, err := ntag424.AesCbcDecrypt(l.key[:], iv0, encryptedPart3)
	if err != nil {
		return corecfg.SessionKeys{}, corerr.Wrap(corerr.Internal, op, err)
	}
	ti := dec[:4]
	rndAPrime := dec[4:20]
	if !ntag424.VerifyRndAPrime(l.rndA[:], rndAPrime) {
		return corecfg.SessionKeys{}, corerr.New(corerr.Unauthenticated, op)
	}

	encKey, macKey, err := ntag424.DeriveSessionKeys(l.key[:], l.rndA[:], l.pendingRndB[:])
	if err != nil {
		return corecfg.SessionKeys{}, corerr.Wrap(corerr.Internal, op, err)
	}

	var keys corecfg.SessionKeys
	copy(keys.EncKey[:], encKey)
	copy(keys.MacKey[:], macKey)
	copy(keys.TI[:], ti)
	ntag424.SecureZero(encKey)
	ntag424.SecureZero(macKey)
	return keys, nil
}

func (l *Local) zeroNonce() {
	ntag424.SecureZero(l.rndA[:])
	ntag424.SecureZero(l.pendingRndB[:])
}

// CancelAuthentication discards the in-flight nonce. Idempotent.
func (l *Local) CancelAuthentication() { l.zeroNonce() }

// Zero overwrites the diversified key itself, once the caller is done with
// this Local entirely (spec.md section 7's "every transient holder of key
// bytes ... zeros its buffer on drop").
func (l *Local) Zero() {
	l.zeroNonce()
	ntag424.SecureZero(l.key[:])
}
