package session

import (
	"github.com/werkstattwaedi/accesscore/pkg/corecfg"
	"github.com/werkstattwaedi/accesscore/pkg/verifier"
)

// VerifierBridge adapts pkg/verifier's tag-verification observer callbacks
// onto FSM events, implementing spec.md section 2's data-flow note
// "... observers (incl. FSM) -> FSM snapshot update": the FSM only ever
// hears about authorization outcomes and tag presence through this bridge,
// registered as a verifier.Observer at boot.
type VerifierBridge struct {
	fsm *FSM
}

// NewVerifierBridge builds a bridge forwarding verifier notifications to fsm.
func NewVerifierBridge(fsm *FSM) *VerifierBridge { return &VerifierBridge{fsm: fsm} }

func (b *VerifierBridge) OnTagDetected(corecfg.TagUid) { b.fsm.Receive(TagPresence{Present: true}) }
func (b *VerifierBridge) OnVerifying()                 {}
func (b *VerifierBridge) OnTagVerified(corecfg.TagUid)  {}
func (b *VerifierBridge) OnUnknownTag()                 {}
func (b *VerifierBridge) OnAuthorizing()                {}

func (b *VerifierBridge) OnAuthorized(tagUID corecfg.TagUid, userID corecfg.Identifier, userLabel corecfg.UserLabel, authID corecfg.Identifier) {
	b.fsm.Receive(UserAuthorized{TagUID: tagUID, UserID: userID, UserLabel: userLabel, AuthID: authID})
}

func (b *VerifierBridge) OnUnauthorized() {}
func (b *VerifierBridge) OnTagRemoved()   { b.fsm.Receive(TagPresence{Present: false}) }

var _ verifier.Observer = (*VerifierBridge)(nil)
