package keyprovider

import (
	"context"

	"github.com/werkstattwaedi/accesscore/internal/corerr"
	"github.com/werkstattwaedi/accesscore/pkg/corecfg"
)

// CloudAuthClient is the narrow slice of the cloud RPC surface Cloud needs
// (spec.md section 6): authenticate_tag and complete_tag_auth.
// internal/cloud.Client implements this.
type CloudAuthClient interface {
	AuthenticateTag(ctx context.Context, tagUID []byte, keyNo byte, encryptedRndB []byte) (authID string, cloudChallenge []byte, err error)
	CompleteTagAuth(ctx context.Context, authID string, encryptedPart3 []byte) (corecfg.SessionKeys, error)
}

// Cloud delegates authentication cryptography to a remote service holding
// the diversified key, per spec.md section 4.4: create_ntag_challenge
// forwards the encrypted RndB and stores the returned auth_id;
// verify_and_compute_session_keys forwards encrypted Part 3 and, on
// success, returns SessionKeys while retaining auth_id for later lookup; on
// rejection it clears auth_id and reports UNAUTHENTICATED.
type Cloud struct {
	client CloudAuthClient
	keyNo  byte
	tagUID []byte
	ctx    context.Context

	authID string
}

// NewCloud builds a Cloud provider for slot keyNo against tagUID, issuing
// RPCs under ctx.
func NewCloud(ctx context.Context, client CloudAuthClient, keyNo byte, tagUID []byte) *Cloud {
	return &Cloud{client: client, keyNo: keyNo, tagUID: append([]byte{}, tagUID...), ctx: ctx}
}

func (c *Cloud) KeyNumber() byte { return c.keyNo }

func (c *Cloud) CreateChallenge(encryptedRndB []byte) ([]byte, error) {
	const op = "keyprovider.Cloud.CreateChallenge"
	if len(encryptedRndB) != 16 {
		return nil, corerr.New(corerr.InvalidArgument, op)
	}
	authID, challenge, err := c.client.AuthenticateTag(c.ctx, c.tagUID, c.keyNo, encryptedRndB)
	if err != nil {
		return nil, corerr.Wrap(corerr.Unavailable, op, err)
	}
	if len(challenge) != 32 {
		return nil, corerr.New(corerr.DataLoss, op)
	}
	c.authID = authID
	return challenge, nil
}

func (c *Cloud) VerifyAndComputeSessionKeys(encryptedPart3 []byte) (corecfg.SessionKeys, error) {
	const op = "keyprovider.Cloud.VerifyAndComputeSessionKeys"
	if c.authID == "" {
		return corecfg.SessionKeys{}, corerr.New(corerr.FailedPrecondition, op)
	}
	if len(encryptedPart3) != 32 {
		return corecfg.SessionKeys{}, corerr.New(corerr.InvalidArgument, op)
	}
	keys, err := c.client.CompleteTagAuth(c.ctx, c.authID, encryptedPart3)
	if err != nil {
		c.authID = ""
		return corecfg.SessionKeys{}, corerr.Wrap(corerr.Unauthenticated, op, err)
	}
	return keys, nil
}

// CancelAuthentication clears the stored auth_id without an RPC; the cloud
// side times out its own pending challenges.
func (c *Cloud) CancelAuthentication() { c.authID = "" }

// AuthID reports the cloud-assigned authentication identifier established
// by the most recent successful CreateChallenge, for retrieval by the
// verifier pipeline when inserting into the auth cache (spec.md section
// 4.5 step 6).
func (c *Cloud) AuthID() string { return c.authID }
