package config

import (
	"github.com/werkstattwaedi/accesscore/internal/corerr"
	"github.com/werkstattwaedi/accesscore/pkg/ntag424"
)

// FileSecrets implements pkg/verifier.Secrets by reading the terminal key
// from a hex key file, grounded on ntag424.LoadKeyHexFile (itself adapted
// from the teacher's key-file tooling in minter/sdmconfig).
type FileSecrets struct {
	path string
}

// NewFileSecrets builds a FileSecrets reading the terminal key from path.
func NewFileSecrets(path string) *FileSecrets { return &FileSecrets{path: path} }

// GetNtagTerminalKey implements pkg/verifier.Secrets.
func (s *FileSecrets) GetNtagTerminalKey() ([]byte, error) {
	if s.path == "" {
		return nil, corerr.New(corerr.NotFound, "config.FileSecrets.GetNtagTerminalKey")
	}
	key, err := ntag424.LoadKeyHexFile(s.path)
	if err != nil {
		return nil, corerr.Wrap(corerr.NotFound, "config.FileSecrets.GetNtagTerminalKey", err)
	}
	return key, nil
}
