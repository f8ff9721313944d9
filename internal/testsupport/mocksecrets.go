package testsupport

import "github.com/werkstattwaedi/accesscore/internal/corerr"

// MockSecrets is a scriptable double for spec.md section 6's Secrets
// collaborator.
type MockSecrets struct {
	Key []byte // nil means not_provisioned
}

// NewMockSecrets builds a MockSecrets holding key as the terminal key.
func NewMockSecrets(key []byte) *MockSecrets {
	return &MockSecrets{Key: key}
}

// GetNtagTerminalKey implements verifier.Secrets.
func (s *MockSecrets) GetNtagTerminalKey() ([]byte, error) {
	if s.Key == nil {
		return nil, corerr.New(corerr.NotFound, "mocksecrets.GetNtagTerminalKey")
	}
	return s.Key, nil
}
