package verifier

import "github.com/werkstattwaedi/accesscore/pkg/corecfg"

// maxObservers bounds the verifier's observer vector to a small, fixed
// capacity populated at boot (spec.md section 9's "Observer vectors...
// bounded to avoid dynamic allocation in the core path"). The spec gives an
// exact figure only for the session FSM (4); the verifier's "small-N" is
// taken to be the same bound here.
const maxObservers = 4

// Observer is the tag verification observer named in spec.md section 6.
// Method names mirror the spec's on_* callbacks directly.
type Observer interface {
	OnTagDetected(uid corecfg.TagUid)
	OnVerifying()
	OnTagVerified(uid corecfg.TagUid)
	OnUnknownTag()
	OnAuthorizing()
	OnAuthorized(tagUID corecfg.TagUid, userID corecfg.Identifier, userLabel corecfg.UserLabel, authID corecfg.Identifier)
	OnUnauthorized()
	OnTagRemoved()
}

func (v *Verifier) notifyTagDetected(uid corecfg.TagUid) {
	for _, o := range v.observers {
		o.OnTagDetected(uid)
	}
}

func (v *Verifier) notifyVerifying() {
	for _, o := range v.observers {
		o.OnVerifying()
	}
}

func (v *Verifier) notifyTagVerified(uid corecfg.TagUid) {
	for _, o := range v.observers {
		o.OnTagVerified(uid)
	}
}

func (v *Verifier) notifyUnknownTag() {
	for _, o := range v.observers {
		o.OnUnknownTag()
	}
}

func (v *Verifier) notifyAuthorizing() {
	for _, o := range v.observers {
		o.OnAuthorizing()
	}
}

func (v *Verifier) notifyAuthorized(tagUID corecfg.TagUid, userID corecfg.Identifier, userLabel corecfg.UserLabel, authID corecfg.Identifier) {
	for _, o := range v.observers {
		o.OnAuthorized(tagUID, userID, userLabel, authID)
	}
}

func (v *Verifier) notifyUnauthorized() {
	for _, o := range v.observers {
		o.OnUnauthorized()
	}
}

func (v *Verifier) notifyTagRemoved() {
	for _, o := range v.observers {
		o.OnTagRemoved()
	}
}
