package ntag424

import (
	"fmt"

	"github.com/werkstattwaedi/accesscore/internal/corerr"
)

// Status words, per spec.md section 4.3. Where the teacher's errors.go used
// a different label for the same byte pair (it called 0x911C a "boundary
// error" and 0x9140 "no changes"), this table follows spec.md's bit-exact
// mapping instead: spec.md section 6 requires the status-word mapping to be
// bit-exact against the reference.
const (
	swOKIso      = 0x9000
	swOKDesfire  = 0x9100
	swChaining   = 0x91AF
	swIllegalCmd = 0x911C // INVALID_ARGUMENT (illegal command)
	swIntegrity  = 0x911E // DATA_LOSS (integrity error)
	swNoSuchKey  = 0x9140 // NOT_FOUND (no such key)
	swLengthErr  = 0x917E // INVALID_ARGUMENT (length error)
	swPermDenied = 0x919D // PERMISSION_DENIED
	swParamErr   = 0x919E // INVALID_ARGUMENT (parameter error)
	swUnauth     = 0x91AE // UNAUTHENTICATED
	swOutOfRange = 0x91BE // OUT_OF_RANGE
	swAborted    = 0x91CA // ABORTED
	swMemErr     = 0x91EE // INTERNAL (memory error)
)

func swOK(sw uint16) bool {
	return sw == swOKIso || sw == swOKDesfire
}

// swError wraps a failing status word, classified to a corerr.Code per
// spec.md section 4.3's table — the teacher's SWError/swDescription split
// (pkg/ntag424/errors.go), generalized to the abstract error taxonomy.
type swError struct {
	op string
	sw uint16
}

func (e *swError) Error() string {
	return fmt.Sprintf("%s: SW=%04X (%s)", e.op, e.sw, e.code())
}

func (e *swError) code() corerr.Code {
	switch e.sw {
	case swChaining:
		return corerr.Unimplemented
	case swIllegalCmd:
		return corerr.InvalidArgument
	case swIntegrity:
		return corerr.DataLoss
	case swNoSuchKey:
		return corerr.NotFound
	case swLengthErr:
		return corerr.InvalidArgument
	case swPermDenied:
		return corerr.PermissionDenied
	case swParamErr:
		return corerr.InvalidArgument
	case swUnauth:
		return corerr.Unauthenticated
	case swOutOfRange:
		return corerr.OutOfRange
	case swAborted:
		return corerr.Aborted
	case swMemErr:
		return corerr.Internal
	default:
		return corerr.Unknown
	}
}

// newSWError builds a classified error for a non-OK status word observed
// at op.
func newSWError(op string, sw uint16) error {
	e := &swError{op: op, sw: sw}
	return corerr.Wrap(e.code(), op, e)
}
