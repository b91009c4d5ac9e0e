package core

import (
	"errors"
	"testing"
)

func TestMoneyValidate(t *testing.T) {
	if err := (Money{Cents: 1}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Money{Cents: 0}).Validate(); err == nil {
		t.Fatalf("expected error for zero")
	}
}

func TestDefaultState(t *testing.T) {
	st := DefaultState([]string{"Alice", "Bob"})
	if st.Contractor != "Alice" {
		t.Fatalf("expected first member as contractor, got %q", st.Contractor)
	}
	if st.History == nil || len(st.History) != 0 {
		t.Fatalf("expected empty non-nil history, got %v", st.History)
	}
	if empty := DefaultState(nil); empty.Contractor != "" {
		t.Fatalf("expected no contractor for empty group, got %q", empty.Contractor)
	}
}

func TestAddMember(t *testing.T) {
	st := DefaultState([]string{"Alice"})
	if err := st.AddMember("  Bob "); err != nil {
		t.Fatalf("add: %v", err)
	}
	if !st.HasMember("Bob") {
		t.Fatalf("expected trimmed Bob in %v", st.Members)
	}
	if err := st.AddMember("Bob"); !errors.Is(err, ErrMemberExists) {
		t.Fatalf("expected ErrMemberExists, got %v", err)
	}
	if err := st.AddMember("   "); !errors.Is(err, ErrEmptyMember) {
		t.Fatalf("expected ErrEmptyMember, got %v", err)
	}
	if len(st.Members) != 2 {
		t.Fatalf("expected 2 members, got %v", st.Members)
	}
}

func TestRemoveMember(t *testing.T) {
	st := DefaultState([]string{"Alice", "Bob", "Carol"})
	st.History = Ledger{"2024-05": {"Bob"}}

	if err := st.RemoveMember("Alice"); !errors.Is(err, ErrContractorRemoval) {
		t.Fatalf("expected ErrContractorRemoval, got %v", err)
	}
	if err := st.RemoveMember("Dave"); !errors.Is(err, ErrUnknownMember) {
		t.Fatalf("expected ErrUnknownMember, got %v", err)
	}
	if err := st.RemoveMember("Bob"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if st.HasMember("Bob") {
		t.Fatalf("Bob still a member: %v", st.Members)
	}
	// history is not purged
	if !st.History.HasPaid("2024-05", "Bob") {
		t.Fatalf("expected Bob's payment record to survive removal")
	}
}

func TestSetContractor(t *testing.T) {
	st := DefaultState([]string{"Alice", "Bob"})
	if err := st.SetContractor("Bob"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if st.Contractor != "Bob" {
		t.Fatalf("contractor = %q", st.Contractor)
	}
	if err := st.SetContractor("Zed"); !errors.Is(err, ErrUnknownMember) {
		t.Fatalf("expected ErrUnknownMember, got %v", err)
	}
}

func TestSetPaymentLink(t *testing.T) {
	st := DefaultState([]string{"Alice"})
	if err := st.SetPaymentLink(" https://pay.example.com/u/alice "); err != nil {
		t.Fatalf("set: %v", err)
	}
	if st.PaymentLink != "https://pay.example.com/u/alice" {
		t.Fatalf("link = %q", st.PaymentLink)
	}
	for _, bad := range []string{"javascript:alert(1)", "ftp://x", "not a url", "https://"} {
		if err := st.SetPaymentLink(bad); !errors.Is(err, ErrInvalidPaymentLink) {
			t.Fatalf("%q: expected ErrInvalidPaymentLink, got %v", bad, err)
		}
	}
	if err := st.SetPaymentLink(""); err != nil || st.PaymentLink != "" {
		t.Fatalf("expected clear, got %q (err=%v)", st.PaymentLink, err)
	}
}

func TestDeleteMonth(t *testing.T) {
	st := DefaultState([]string{"Alice"})
	st.History = Ledger{"2024-05": {}, "2024-06": {}}
	if err := st.DeleteMonth("2024-05"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := st.History["2024-05"]; ok {
		t.Fatalf("month still present")
	}
	if err := st.DeleteMonth("2024-05"); !errors.Is(err, ErrUnknownMonth) {
		t.Fatalf("expected ErrUnknownMonth, got %v", err)
	}
}

func TestStateCloneIsDeep(t *testing.T) {
	st := DefaultState([]string{"Alice", "Bob"})
	st.History = Ledger{"2024-05": {"Bob"}}
	cp := st.Clone()
	cp.Members[0] = "X"
	cp.History["2024-05"][0] = "Y"
	if st.Members[0] != "Alice" || st.History["2024-05"][0] != "Bob" {
		t.Fatalf("clone aliases original: %+v", st)
	}
}
