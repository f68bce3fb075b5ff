package domain

import (
	"testing"
	"time"
)

func TestStatusKindTerminal(t *testing.T) {
	if StatusPending.IsTerminal() {
		t.Fatal("pending must not be terminal")
	}
	if !StatusConfirmed.IsTerminal() {
		t.Fatal("confirmed must be terminal")
	}
	if !StatusDeclined.IsTerminal() {
		t.Fatal("declined must be terminal")
	}
}

func TestStatusKindValid(t *testing.T) {
	for _, kind := range []StatusKind{StatusPending, StatusConfirmed, StatusDeclined} {
		if !kind.Valid() {
			t.Fatalf("%s should be valid", kind)
		}
	}
	if StatusKind("cancelled").Valid() {
		t.Fatal("unknown kind should not be valid")
	}
}

func TestPendingTransitions(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	confirmed := Pending{}.Confirm(now, "user-1")
	if confirmed.Kind() != StatusConfirmed {
		t.Fatalf("got %s, want confirmed", confirmed.Kind())
	}
	if confirmed.At != now || confirmed.By != "user-1" {
		t.Fatalf("confirm fields not carried: %+v", confirmed)
	}

	declined := Pending{}.Decline(now, "email-link", "date_conflict", "double booked")
	if declined.Kind() != StatusDeclined {
		t.Fatalf("got %s, want declined", declined.Kind())
	}
	if declined.ReasonCode != "date_conflict" || declined.Notes != "double booked" {
		t.Fatalf("decline fields not carried: %+v", declined)
	}
}

func TestTokenExpired(t *testing.T) {
	expiry := time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC)
	c := &Confirmation{TokenExpiresAt: expiry}

	if c.TokenExpired(expiry.Add(-time.Hour)) {
		t.Fatal("token should still be valid before expiry")
	}
	if !c.TokenExpired(expiry.Add(time.Second)) {
		t.Fatal("token should be expired after expiry")
	}
}
