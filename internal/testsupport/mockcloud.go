package testsupport

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"sync"

	"github.com/werkstattwaedi/accesscore/internal/cloud"
	"github.com/werkstattwaedi/accesscore/pkg/corecfg"
	"github.com/werkstattwaedi/accesscore/pkg/ntag424"
)

// MockCloud is a scriptable double for spec.md section 6's Cloud
// collaborator. It answers terminal_checkin from a per-UID script, and
// answers authenticate_tag/complete_tag_auth by running the same EV2
// cryptography a real cloud service would run against authKey, so tests
// can exercise pkg/keyprovider.Cloud end-to-end without a network.
type MockCloud struct {
	mu       sync.Mutex
	checkins map[string]cloud.CheckinResult
	calls    []string

	authKey   []byte
	pending   map[string]*pendingAuth
	nextAuthID int
}

type pendingAuth struct {
	rndA []byte
	rndB []byte
}

// NewMockCloud builds a MockCloud that answers authenticate_tag/
// complete_tag_auth as if authKey were the diversified key held remotely.
func NewMockCloud(authKey []byte) *MockCloud {
	return &MockCloud{
		checkins: map[string]cloud.CheckinResult{},
		authKey:  append([]byte{}, authKey...),
		pending:  map[string]*pendingAuth{},
	}
}

// SetCheckin scripts the terminal_checkin response for tagUID.
func (m *MockCloud) SetCheckin(tagUID corecfg.TagUid, result cloud.CheckinResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkins[tagUID.Hex()] = result
}

// TerminalCheckin implements the Cloud collaborator's terminal_checkin.
func (m *MockCloud) TerminalCheckin(ctx context.Context, tagUID corecfg.TagUid) (cloud.CheckinResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "terminal_checkin:"+tagUID.Hex())
	r, ok := m.checkins[tagUID.Hex()]
	if !ok {
		return cloud.CheckinResult{Authorized: false, RejectedReason: "no script for tag"}, nil
	}
	return r, nil
}

// Calls returns the ordered list of RPC calls observed, for assertions on
// call counts (e.g. the cache-hit scenario's "no cloud call issued").
func (m *MockCloud) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string{}, m.calls...)
}

// AuthenticateTag implements keyprovider.CloudAuthClient's authenticate_tag,
// performing the same RndA-generation/Part-2 math pkg/keyprovider.Local
// would, but keyed by an opaque auth_id instead of returning the nonce to
// the caller.
func (m *MockCloud) AuthenticateTag(ctx context.Context, tagUID []byte, keyNo byte, encryptedRndB []byte) (string, []byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "authenticate_tag")

	iv0 := make([]byte, 16)
	rndB, err := ntag424.AesCbcDecrypt(m.authKey, iv0, encryptedRndB)
	if err != nil {
		return "", nil, err
	}
	rndA := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, rndA); err != nil {
		return "", nil, err
	}
	rndBRot := ntag424.RotateLeft1(rndB)
	plain := append(append([]byte{}, rndA...), rndBRot...)
	challenge, err := ntag424.AesCbcEncrypt(m.authKey, iv0, plain)
	if err != nil {
		return "", nil, err
	}

	m.nextAuthID++
	authID := fmt.Sprintf("auth_%d", m.nextAuthID)
	m.pending[authID] = &pendingAuth{rndA: rndA, rndB: rndB}
	return authID, challenge, nil
}

// CompleteTagAuth implements keyprovider.CloudAuthClient's complete_tag_auth.
func (m *MockCloud) CompleteTagAuth(ctx context.Context, authID string, encryptedPart3 []byte) (corecfg.SessionKeys, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "complete_tag_auth:"+authID)

	p, ok := m.pending[authID]
	if !ok {
		return corecfg.SessionKeys{}, fmt.Errorf("mockcloud: unknown auth_id %q", authID)
	}
	delete(m.pending, authID)

	iv0 := make([]byte, 16)
	dec, err := ntag424.AesCbcDecrypt(m.authKey, iv0, encryptedPart3)
	if err != nil {
		return corecfg.SessionKeys{}, err
	}
	ti := dec[:4]
	rndAPrime := dec[4:20]
	if !ntag424.VerifyRndAPrime(p.rndA, rndAPrime) {
		return corecfg.SessionKeys{}, fmt.Errorf("mockcloud: rndA mismatch")
	}

	encKey, macKey, err := ntag424.DeriveSessionKeys(m.authKey, p.rndA, p.rndB)
	if err != nil {
		return corecfg.SessionKeys{}, err
	}
	var keys corecfg.SessionKeys
	copy(keys.EncKey[:], encKey)
	copy(keys.MacKey[:], macKey)
	copy(keys.TI[:], ti)
	return keys, nil
}
