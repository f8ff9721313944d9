package usagesink

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/werkstattwaedi/accesscore/pkg/corecfg"
)

func TestOnSessionEndedPersistsRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usage.db")
	sink, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer sink.Close()

	info := corecfg.SessionInfo{
		TagUid:    corecfg.NewTagUid([]byte{0x04, 0x11, 0x22, 0x33}),
		UserID:    corecfg.NewIdentifier("user123"),
		UserLabel: corecfg.NewUserLabel("Test User"),
		AuthID:    corecfg.NewIdentifier("auth_abc"),
	}
	checkIn := time.Now().Add(-time.Hour)
	checkOut := time.Now()
	usage := corecfg.MachineUsage{
		UserID:   info.UserID,
		AuthID:   info.AuthID,
		CheckIn:  checkIn,
		CheckOut: checkOut,
		Reason:   corecfg.ReasonSelfCheckout,
	}

	sink.OnSessionStarted(info)
	sink.OnSessionEnded(info, usage)

	rows, err := sink.Recent(10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("len(rows) = %d, want 1", len(rows))
	}
	got := rows[0]
	if got.TagUid != info.TagUid.Hex() {
		t.Fatalf("TagUid = %q, want %q", got.TagUid, info.TagUid.Hex())
	}
	if got.UserID != "user123" || got.AuthID != "auth_abc" {
		t.Fatalf("unexpected identifiers: %+v", got)
	}
	if got.Reason != "self_checkout" {
		t.Fatalf("Reason = %q, want self_checkout", got.Reason)
	}
	if !got.CheckIn.Equal(checkIn) || !got.CheckOut.Equal(checkOut) {
		t.Fatalf("unexpected timestamps: %+v", got)
	}
}

func TestRecentOrdersNewestFirst(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usage.db")
	sink, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer sink.Close()

	info := corecfg.SessionInfo{TagUid: corecfg.NewTagUid([]byte{0x01})}
	for i, reason := range []corecfg.CheckoutReason{corecfg.ReasonSelfCheckout, corecfg.ReasonOtherTag} {
		sink.OnSessionEnded(info, corecfg.MachineUsage{
			CheckIn:  time.Now(),
			CheckOut: time.Now(),
			Reason:   reason,
		})
		_ = i
	}

	rows, err := sink.Recent(10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("len(rows) = %d, want 2", len(rows))
	}
	if rows[0].Reason != "other_tag" || rows[1].Reason != "self_checkout" {
		t.Fatalf("unexpected order: %+v", rows)
	}
}
