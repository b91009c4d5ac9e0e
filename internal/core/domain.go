package core

import (
	"errors"
	"net/url"
	"slices"
	"strings"
)

type (
	// MonthKey identifies a billing period as a zero-padded "YYYY-MM" string.
	MonthKey string

	// Amount is an integer amount in local currency units.
	Amount int64

	// Money is a base-currency price held in cents.
	Money struct {
		Cents int64
	}

	// Ledger maps a month to the members who paid their share for it.
	// The slices have set semantics: only membership matters.
	Ledger map[MonthKey][]string

	// State is the whole persisted record. It is always saved as a unit.
	State struct {
		History     Ledger   `json:"history"`
		Members     []string `json:"members"`
		Contractor  string   `json:"contractor"`
		PaymentLink string   `json:"payment_link"`
	}
)

var (
	ErrInvalidMonthKey    = errors.New("invalid month key")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrEmptyMember        = errors.New("empty member name")
	ErrMemberTooLong      = errors.New("member name too long (max 50 characters)")
	ErrMemberExists       = errors.New("member already exists")
	ErrUnknownMember      = errors.New("unknown member")
	ErrContractorRemoval  = errors.New("cannot remove the contractor; choose another contractor first")
	ErrMonthExists        = errors.New("month already exists")
	ErrUnknownMonth       = errors.New("unknown month")
	ErrInvalidPaymentLink = errors.New("payment link must be an http or https URL")
)

// DefaultState returns the record used when nothing usable is stored.
// The first member becomes the contractor.
func DefaultState(members []string) State {
	st := State{
		History: Ledger{},
		Members: append([]string(nil), members...),
	}
	if len(members) > 0 {
		st.Contractor = members[0]
	}
	return st
}

// Clone returns a deep copy so callers can mutate without aliasing.
func (s State) Clone() State {
	return State{
		History:     s.History.Clone(),
		Members:     append([]string(nil), s.Members...),
		Contractor:  s.Contractor,
		PaymentLink: s.PaymentLink,
	}
}

// HasMember reports whether name is in the member list.
func (s State) HasMember(name string) bool {
	return slices.Contains(s.Members, name)
}

// AddMember appends a new member. Names are trimmed; duplicates are rejected.
func (s *State) AddMember(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyMember
	}
	if len([]rune(name)) > 50 {
		return ErrMemberTooLong
	}
	if s.HasMember(name) {
		return ErrMemberExists
	}
	s.Members = append(s.Members, name)
	return nil
}

// RemoveMember drops a member from the list. Ledger entries that reference
// the name are kept. The contractor cannot be removed.
func (s *State) RemoveMember(name string) error {
	idx := slices.Index(s.Members, name)
	if idx < 0 {
		return ErrUnknownMember
	}
	if name == s.Contractor {
		return ErrContractorRemoval
	}
	s.Members = slices.Delete(s.Members, idx, idx+1)
	return nil
}

// SetContractor designates the member who fronts the payment.
func (s *State) SetContractor(name string) error {
	if !s.HasMember(name) {
		return ErrUnknownMember
	}
	s.Contractor = name
	return nil
}

// SetPaymentLink stores the link members use to send money. An empty link clears it.
func (s *State) SetPaymentLink(link string) error {
	link = strings.TrimSpace(link)
	if link != "" {
		u, err := url.Parse(link)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return ErrInvalidPaymentLink
		}
	}
	s.PaymentLink = link
	return nil
}

// DeleteMonth removes a whole month column from the ledger.
func (s *State) DeleteMonth(month MonthKey) error {
	if _, ok := s.History[month]; !ok {
		return ErrUnknownMonth
	}
	delete(s.History, month)
	return nil
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}
