package settlement

import "testing"

func TestTransition(t *testing.T) {
	allowed := [][2]Status{
		{"", StatusPending},
		{"", StatusCompleted},
		{"", StatusFailed},
		{StatusPending, StatusCompleted},
		{StatusPending, StatusFailed},
	}
	for _, tr := range allowed {
		if err := Transition(tr[0], tr[1]); err != nil {
			t.Fatalf("expected %q -> %q allowed: %v", tr[0], tr[1], err)
		}
	}

	denied := [][2]Status{
		{StatusCompleted, StatusFailed},
		{StatusFailed, StatusCompleted},
		{StatusCompleted, StatusPending},
		{StatusPending, StatusPending},
		{"", "ARCHIVED"},
	}
	for _, tr := range denied {
		if err := Transition(tr[0], tr[1]); err == nil {
			t.Fatalf("expected %q -> %q rejected", tr[0], tr[1])
		}
	}
}

func TestPlaceholderProfile(t *testing.T) {
	p := PlaceholderProfile(42, "tenant")
	if p.Email != "tenant@example.com" {
		t.Fatalf("unexpected email %s", p.Email)
	}
	if p.WalletAddress != "0x42" || p.Address() != "0x42" {
		t.Fatalf("unexpected address %s", p.WalletAddress)
	}
	if !p.Placeholder {
		t.Fatal("placeholder flag not set")
	}
	if PlaceholderProfile(1, "").Email != "user@example.com" {
		t.Fatal("empty role should default to user")
	}
}

func TestProfileAddressFallback(t *testing.T) {
	real := Profile{ID: 7, Email: "owner@realestate.io"}
	if real.Address() != "0x7" {
		t.Fatalf("expected synthetic address, got %s", real.Address())
	}
	real.WalletAddress = "0xabcdef"
	if real.Address() != "0xabcdef" {
		t.Fatalf("expected wallet address, got %s", real.Address())
	}
}
