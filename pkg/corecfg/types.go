// Package corecfg holds the value types shared across the ntag424, cache,
// keyprovider, verifier and session packages, plus the configuration struct
// recognized at core construction.
package corecfg

import (
	"encoding/hex"
	"strings"
)

// maxUidLen is the fixed capacity of TagUid. The NTAG424 real UID is 7
// bytes; the extra headroom accommodates reader-reported UIDs up to 10
// bytes (e.g. some PC/SC readers report a padded or double-size UID).
const maxUidLen = 10

// TagUid is a fixed-capacity, value-semantic tag identifier. Copying a
// TagUid copies its bytes; there is no shared backing array.
type TagUid struct {
	b   [maxUidLen]byte
	len byte
}

// NewTagUid builds a TagUid from a byte slice of length 0..10.
// Longer input is an implementation error in the caller, not a runtime
// condition to recover from gracefully, so it truncates rather than erroring.
func NewTagUid(b []byte) TagUid {
	var u TagUid
	n := len(b)
	if n > maxUidLen {
		n = maxUidLen
	}
	copy(u.b[:], b[:n])
	u.len = byte(n)
	return u
}

// Bytes returns the UID's significant bytes. The returned slice is a copy.
func (u TagUid) Bytes() []byte {
	out := make([]byte, u.len)
	copy(out, u.b[:u.len])
	return out
}

// Len reports the number of significant bytes.
func (u TagUid) Len() int { return int(u.len) }

// IsZero reports whether the UID carries no bytes.
func (u TagUid) IsZero() bool { return u.len == 0 }

// Hex returns the canonical string form of a TagUid: uppercase hex, no
// separators. This is the one encoding used at every storage/log/cloud-RPC
// boundary in this module — see SPEC_FULL.md section C ("Open Question —
// hex vs reference encoding of tokenId").
func (u TagUid) Hex() string {
	return strings.ToUpper(hex.EncodeToString(u.b[:u.len]))
}

// Equal reports whether two UIDs carry the same significant bytes.
func (u TagUid) Equal(o TagUid) bool {
	if u.len != o.len {
		return false
	}
	for i := byte(0); i < u.len; i++ {
		if u.b[i] != o.b[i] {
			return false
		}
	}
	return true
}

func (u TagUid) String() string { return u.Hex() }

// maxIdentifierLen bounds Identifier per spec.md section 3.
const maxIdentifierLen = 32

// Identifier is an opaque short string used for user, authentication, and
// machine references. The zero value is the empty identifier, distinguishable
// from any real value via IsEmpty.
type Identifier string

// NewIdentifier truncates s to the maximum identifier length.
func NewIdentifier(s string) Identifier {
	if len(s) > maxIdentifierLen {
		s = s[:maxIdentifierLen]
	}
	return Identifier(s)
}

// IsEmpty reports whether the identifier carries no value.
func (id Identifier) IsEmpty() bool { return id == "" }

func (id Identifier) String() string { return string(id) }

// maxUserLabelLen bounds the human-readable label carried by AuthCacheEntry
// and SessionInfo (spec.md section 3).
const maxUserLabelLen = 64

// UserLabel is a short, truncated, human-readable display label.
type UserLabel string

// NewUserLabel truncates s to the maximum label length.
func NewUserLabel(s string) UserLabel {
	if len(s) > maxUserLabelLen {
		s = s[:maxUserLabelLen]
	}
	return UserLabel(s)
}

func (l UserLabel) String() string { return string(l) }

// SessionKeys carries the AES session keys and transaction metadata produced
// by a KeyProvider during AuthenticateEV2First. It is transferred exactly
// once into a SecureMessaging context; Zero must be called on every other
// exit path (error, cancellation) to avoid leaving key material live in
// memory longer than necessary.
type SessionKeys struct {
	EncKey     [16]byte
	MacKey     [16]byte
	TI         [4]byte
	PiccCaps   [6]byte
}

// Zero overwrites all key material. Safe to call on a zero-value SessionKeys.
func (k *SessionKeys) Zero() {
	if k == nil {
		return
	}
	for i := range k.EncKey {
		k.EncKey[i] = 0
	}
	for i := range k.MacKey {
		k.MacKey[i] = 0
	}
	for i := range k.TI {
		k.TI[i] = 0
	}
	for i := range k.PiccCaps {
		k.PiccCaps[i] = 0
	}
}
