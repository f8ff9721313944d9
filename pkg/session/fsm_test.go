package session

import (
	"testing"
	"time"

	"github.com/werkstattwaedi/accesscore/internal/testsupport"
	"github.com/werkstattwaedi/accesscore/pkg/corecfg"
)

func uid(b byte) corecfg.TagUid { return corecfg.NewTagUid([]byte{b, 1, 2, 3}) }

func newFixture(t *testing.T) (*FSM, *testsupport.RecordingSessionObserver) {
	t.Helper()
	f := New(15*time.Second, 5*time.Second)
	obs := &testsupport.RecordingSessionObserver{}
	if err := f.AddObserver(obs); err != nil {
		t.Fatalf("AddObserver: %v", err)
	}
	return f, obs
}

// TestHappyPathStartsSession matches spec.md section 8 scenario 1's FSM half.
func TestHappyPathStartsSession(t *testing.T) {
	f, obs := newFixture(t)
	f.Receive(UserAuthorized{TagUID: uid(1), UserLabel: corecfg.NewUserLabel("Test User")})

	if f.GetSnapshot().State != corecfg.StateRunning {
		t.Fatalf("state = %v, want running", f.GetSnapshot().State)
	}
	if obs.StartedCount() != 1 || obs.EndedCount() != 0 {
		t.Fatalf("started=%d ended=%d, want 1/0", obs.StartedCount(), obs.EndedCount())
	}
}

// TestRejectedNeverStartsSession matches spec.md section 8 scenario 2.
func TestRejectedNeverStartsSession(t *testing.T) {
	f, obs := newFixture(t)
	// No UserAuthorized delivered at all (cloud rejected upstream).
	if f.GetSnapshot().State != corecfg.StateNoSession {
		t.Fatalf("state = %v, want no_session", f.GetSnapshot().State)
	}
	if obs.StartedCount() != 0 || obs.EndedCount() != 0 {
		t.Fatalf("expected no observer calls, got started=%d ended=%d", obs.StartedCount(), obs.EndedCount())
	}
}

// TestSelfCheckoutByHold matches spec.md section 8 scenario 3.
func TestSelfCheckoutByHold(t *testing.T) {
	f, obs := newFixture(t)
	base := time.Now()
	f.now = func() time.Time { return base }
	f.Receive(UserAuthorized{TagUID: uid(1), UserLabel: corecfg.NewUserLabel("Test User")})

	f.now = func() time.Time { return base.Add(time.Second) }
	f.Receive(UserAuthorized{TagUID: uid(1), UserLabel: corecfg.NewUserLabel("Test User")})
	if f.GetSnapshot().State != corecfg.StateCheckoutPending {
		t.Fatalf("state = %v, want checkout_pending", f.GetSnapshot().State)
	}

	f.now = func() time.Time { return base.Add(6 * time.Second) }
	f.Receive(HoldConfirmed{})

	if f.GetSnapshot().State != corecfg.StateNoSession {
		t.Fatalf("state = %v, want no_session", f.GetSnapshot().State)
	}
	if obs.StartedCount() != 1 || obs.EndedCount() != 1 {
		t.Fatalf("started=%d ended=%d, want 1/1", obs.StartedCount(), obs.EndedCount())
	}
	last := obs.Ended[0]
	if last.Usage.Reason != corecfg.ReasonSelfCheckout {
		t.Fatalf("reason = %v, want SelfCheckout", last.Usage.Reason)
	}
	if !last.Usage.CheckIn.Equal(base) || !last.Usage.CheckOut.Equal(base.Add(6 * time.Second)) {
		t.Fatalf("unexpected usage timestamps: %+v", last.Usage)
	}
}

// TestTakeover matches spec.md section 8 scenario 4.
func TestTakeover(t *testing.T) {
	f, obs := newFixture(t)
	f.Receive(UserAuthorized{TagUID: uid(1), UserLabel: corecfg.NewUserLabel("Test User")})
	f.Receive(UserAuthorized{TagUID: uid(2), UserLabel: corecfg.NewUserLabel("Bob")})

	if f.GetSnapshot().State != corecfg.StateTakeoverPending {
		t.Fatalf("state = %v, want takeover_pending", f.GetSnapshot().State)
	}

	f.Receive(UiConfirm{})

	if f.GetSnapshot().State != corecfg.StateRunning {
		t.Fatalf("state = %v, want running", f.GetSnapshot().State)
	}
	if obs.StartedCount() != 2 || obs.EndedCount() != 1 {
		t.Fatalf("started=%d ended=%d, want 2/1", obs.StartedCount(), obs.EndedCount())
	}
	if obs.Ended[0].Info.UserLabel != corecfg.NewUserLabel("Test User") {
		t.Fatalf("ended session label = %q, want Test User", obs.Ended[0].Info.UserLabel)
	}
	if obs.Ended[0].Usage.Reason != corecfg.ReasonOtherTag {
		t.Fatalf("reason = %v, want OtherTag", obs.Ended[0].Usage.Reason)
	}
	if obs.Started[1].UserLabel != corecfg.NewUserLabel("Bob") {
		t.Fatalf("started session label = %q, want Bob", obs.Started[1].UserLabel)
	}
	snap := f.GetSnapshot()
	if snap.Active.UserLabel != corecfg.NewUserLabel("Bob") {
		t.Fatalf("active session label = %q, want Bob", snap.Active.UserLabel)
	}
}

// TestCancelIsIdempotent covers spec.md section 8's FSM cancel idempotence
// law: any sequence of UiCancels leaves the state reachable from Running
// unchanged.
func TestCancelIsIdempotent(t *testing.T) {
	f, _ := newFixture(t)
	f.Receive(UserAuthorized{TagUID: uid(1)})
	if f.GetSnapshot().State != corecfg.StateRunning {
		t.Fatalf("setup: state = %v, want running", f.GetSnapshot().State)
	}
	for i := 0; i < 5; i++ {
		f.Receive(UiCancel{})
	}
	if f.GetSnapshot().State != corecfg.StateRunning {
		t.Fatalf("state = %v, want running after repeated UiCancel", f.GetSnapshot().State)
	}

	f.Receive(UserAuthorized{TagUID: uid(1)})
	for i := 0; i < 5; i++ {
		f.Receive(UiCancel{})
	}
	if f.GetSnapshot().State != corecfg.StateRunning {
		t.Fatalf("state = %v, want running after checkout-pending cancel", f.GetSnapshot().State)
	}
}

// TestTakeoverPendingIgnoresTagAbsence matches spec.md section 4.6's
// "TakeoverPending + TagPresence(false) -> stays in TakeoverPending".
func TestTakeoverPendingIgnoresTagAbsence(t *testing.T) {
	f, _ := newFixture(t)
	f.Receive(UserAuthorized{TagUID: uid(1)})
	f.Receive(UserAuthorized{TagUID: uid(2)})
	f.Receive(TagPresence{Present: false})
	if f.GetSnapshot().State != corecfg.StateTakeoverPending {
		t.Fatalf("state = %v, want takeover_pending", f.GetSnapshot().State)
	}
}

// TestCheckoutPendingTagAbsenceReturnsToRunning matches spec.md section
// 4.6's "CheckoutPending + TagPresence(false) -> Running".
func TestCheckoutPendingTagAbsenceReturnsToRunning(t *testing.T) {
	f, _ := newFixture(t)
	f.Receive(UserAuthorized{TagUID: uid(1)})
	f.Receive(UserAuthorized{TagUID: uid(1)})
	f.Receive(TagPresence{Present: false})
	if f.GetSnapshot().State != corecfg.StateRunning {
		t.Fatalf("state = %v, want running", f.GetSnapshot().State)
	}
}
