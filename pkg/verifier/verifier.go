// Package verifier implements the verification and authorization pipeline
// of spec.md section 4.5: an event-driven loop that watches a reader,
// authenticates each arriving tag against a terminal key, consults a TTL
// cache, and falls back to a cloud check-in for authorization.
//
// There is no teacher analog for an event loop of this shape (the teacher
// is request/response CLI tooling); the spec's "single-threaded cooperative
// task... awaits a reader event, then awaits RPCs" (section 9) is expressed
// the idiomatic Go way: one goroutine ranging over a channel of reader
// events, blocking synchronously through each RPC. A tag-departed event
// queued on the channel while that goroutine is blocked in an RPC is simply
// processed after the RPC returns, which is exactly the "departure during
// kAuthorizing is lost, the eventual cloud answer stands" behavior spec.md
// section 5 requires, without any extra cancellation logic.
package verifier

import (
	"context"
	"log/slog"
	"time"

	"github.com/werkstattwaedi/accesscore/internal/cloud"
	"github.com/werkstattwaedi/accesscore/internal/corerr"
	"github.com/werkstattwaedi/accesscore/pkg/cache"
	"github.com/werkstattwaedi/accesscore/pkg/corecfg"
	"github.com/werkstattwaedi/accesscore/pkg/keyprovider"
	"github.com/werkstattwaedi/accesscore/pkg/ntag424"
)

// Key slots used by the verifier (spec.md section 4.5 steps 3 and 6).
const (
	kTerminal      byte = 1
	kAuthorization byte = 2
)

// EventKind distinguishes a tag arriving from a tag departing (spec.md
// section 6's Reader collaborator event stream).
type EventKind int

const (
	EventArrived EventKind = iota
	EventDeparted
)

// Event is one item from the Reader collaborator's event stream.
type Event struct {
	Kind               EventKind
	UID                []byte
	SupportsISO14443_4 bool
	Card               ntag424.Card
}

// Reader is the spec.md section 6 Reader collaborator, narrowed to the
// single-use subscribe primitive the verifier needs.
type Reader interface {
	Events(ctx context.Context) <-chan Event
}

// Secrets is the spec.md section 6 Secrets collaborator.
type Secrets interface {
	// GetNtagTerminalKey returns the 16-byte terminal key, or a NotFound
	// error when the terminal key has not been provisioned.
	GetNtagTerminalKey() ([]byte, error)
}

// CloudClient is the slice of the Cloud collaborator (spec.md section 6)
// the verifier needs: terminal_checkin plus the authenticate_tag/
// complete_tag_auth pair keyprovider.Cloud uses on slot kAuthorization.
type CloudClient interface {
	TerminalCheckin(ctx context.Context, tagUID corecfg.TagUid) (cloud.CheckinResult, error)
	keyprovider.CloudAuthClient
}

// Verifier runs the event loop described in spec.md section 4.5.
type Verifier struct {
	reader  Reader
	secrets Secrets
	cloud   CloudClient
	cache   *cache.AuthCache

	cacheTTL  time.Duration
	observers []Observer
}

// New builds a Verifier. cacheCapacity/cacheTTL size the AuthCache per
// spec.md section 6's configuration (cache_capacity, cache_ttl); cacheTTL
// also becomes the default per-insert TTL used by handleArrived.
func New(reader Reader, secrets Secrets, cloudClient CloudClient, cacheCapacity int, cacheTTL time.Duration) *Verifier {
	return &Verifier{
		reader:   reader,
		secrets:  secrets,
		cloud:    cloudClient,
		cache:    cache.New(cacheCapacity, cacheTTL),
		cacheTTL: cacheTTL,
	}
}

// AddObserver registers an observer. Must be called before Run; spec.md
// section 9 requires observer vectors to be populated before any event can
// fire. Returns ResourceExhausted once maxObservers is reached.
func (v *Verifier) AddObserver(o Observer) error {
	if len(v.observers) >= maxObservers {
		return corerr.New(corerr.ResourceExhausted, "verifier.AddObserver")
	}
	v.observers = append(v.observers, o)
	return nil
}

// Cache exposes the AuthCache for diagnostics and for session wiring; it is
// the verifier's own cache and is touched only from the Run goroutine
// (spec.md section 5's "AuthCache is touched only by the verifier task").
func (v *Verifier) Cache() *cache.AuthCache { return v.cache }

// Run drains reader.Events until ctx is done, handling each arrival/
// departure in order on the calling goroutine.
func (v *Verifier) Run(ctx context.Context) {
	for ev := range v.reader.Events(ctx) {
		switch ev.Kind {
		case EventArrived:
			v.handleArrived(ctx, ev)
		case EventDeparted:
			v.notifyTagRemoved()
		}
	}
}

// handleArrived implements spec.md section 4.5 steps 1-6.
func (v *Verifier) handleArrived(ctx context.Context, ev Event) {
	detectedUID := corecfg.NewTagUid(ev.UID)
	v.notifyTagDetected(detectedUID)

	// Step 1.
	if !ev.SupportsISO14443_4 {
		v.notifyUnknownTag()
		return
	}

	tag := ntag424.NewTag(ev.Card)

	// Step 2.
	if err := tag.SelectApplication(); err != nil {
		slog.Debug("verifier: select application failed", "error", err)
		v.notifyUnknownTag()
		return
	}

	// Step 3.
	v.notifyVerifying()
	terminalKey, err := v.secrets.GetNtagTerminalKey()
	if err != nil {
		slog.Debug("verifier: terminal key unavailable", "error", err)
		v.notifyUnknownTag()
		return
	}
	localProvider, err := keyprovider.NewLocal(kTerminal, terminalKey)
	if err != nil {
		v.notifyUnknownTag()
		return
	}
	token, err := tag.Authenticate(localProvider)
	if err != nil {
		slog.Debug("verifier: terminal authenticate failed", "error", err)
		v.notifyUnknownTag()
		return
	}

	// Step 4.
	realUID, err := tag.GetCardUid(token)
	if err != nil {
		slog.Debug("verifier: get card uid failed", "error", err)
		v.notifyUnknownTag()
		return
	}
	v.notifyTagVerified(realUID)

	// Step 5: cache lookup.
	if entry, hit := v.cache.Lookup(realUID); hit {
		v.notifyAuthorized(realUID, corecfg.Identifier(""), entry.UserLabel, entry.AuthID)
		return
	}

	v.notifyAuthorizing()
	result, err := v.cloud.TerminalCheckin(ctx, realUID)
	if err != nil {
		slog.Debug("verifier: terminal_checkin failed", "error", err)
		v.notifyUnauthorized()
		return
	}
	if !result.Authorized {
		v.notifyUnauthorized()
		return
	}

	// Authorized with an existing auth_id: cache and done.
	if !result.AuthID.IsEmpty() {
		v.cache.Insert(realUID, result.AuthID, result.UserLabel, v.cacheTTL)
		v.notifyAuthorized(realUID, result.UserID, result.UserLabel, result.AuthID)
		return
	}

	// Authorized without an existing auth: establish one via a cloud key
	// provider on slot kAuthorization (spec.md section 4.5 step 6).
	if err := tag.SelectApplication(); err != nil {
		slog.Debug("verifier: re-select application failed", "error", err)
		v.notifyUnauthorized()
		return
	}
	cloudProvider := keyprovider.NewCloud(ctx, v.cloud, kAuthorization, realUID.Bytes())
	if _, err := tag.Authenticate(cloudProvider); err != nil {
		slog.Debug("verifier: cloud authenticate failed", "error", err)
		v.notifyUnauthorized()
		return
	}
	authID := corecfg.NewIdentifier(cloudProvider.AuthID())
	v.cache.Insert(realUID, authID, result.UserLabel, v.cacheTTL)
	v.notifyAuthorized(realUID, result.UserID, result.UserLabel, authID)
}
