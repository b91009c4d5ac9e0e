// Package storage persists the whole State as one JSON document. Backends
// only move bytes (see Blob); decoding, default backfill and the explicit load
// outcome live here so every backend behaves the same.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"splitpay/internal/core"
	"splitpay/internal/metrics"
)

// ErrNotFound is returned by Blob.Read when nothing has been stored yet.
var ErrNotFound = errors.New("state not found")

// Blob is a single-object byte store holding the encoded state.
type Blob interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	Close() error
}

// LoadStatus tells which path a load took.
type LoadStatus string

const (
	// StatusLoaded means the stored record was parsed (missing fields backfilled).
	StatusLoaded LoadStatus = "loaded"
	// StatusNotFound means nothing was stored; defaults are in use.
	StatusNotFound LoadStatus = "not_found"
	// StatusCorrupt means the stored bytes could not be parsed; defaults are in use.
	StatusCorrupt LoadStatus = "corrupt"
	// StatusUnreadable means the backend failed; defaults are in use and the
	// stored record must not be overwritten.
	StatusUnreadable LoadStatus = "unreadable"
)

// LoadResult carries the state along with how it was obtained.
type LoadResult struct {
	State  core.State
	Status LoadStatus
	Err    error
}

// UsingDefaults reports whether State is the default record.
func (r LoadResult) UsingDefaults() bool {
	return r.Status != StatusLoaded
}

// record mirrors core.State with pointers so absent fields can be detected.
type record struct {
	History     *core.Ledger `json:"history"`
	Members     *[]string    `json:"members"`
	Contractor  *string      `json:"contractor"`
	PaymentLink *string      `json:"payment_link"`
}

// Encode renders the state as indented JSON.
func Encode(st core.State) ([]byte, error) {
	st = normalize(st)
	data, err := json.MarshalIndent(st, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}
	return data, nil
}

// Decode parses data, backfilling any missing field from defaults.
// Unparseable input, or a history with a malformed month key, yields
// StatusCorrupt and the defaults.
func Decode(data []byte, defaults core.State) LoadResult {
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return LoadResult{State: defaults.Clone(), Status: StatusCorrupt, Err: fmt.Errorf("decode state: %w", err)}
	}

	st := defaults.Clone()
	if rec.History != nil {
		for m := range *rec.History {
			if _, err := core.ParseMonthKey(string(m)); err != nil {
				return LoadResult{State: defaults.Clone(), Status: StatusCorrupt, Err: fmt.Errorf("decode state: %w", err)}
			}
		}
		st.History = *rec.History
	}
	if rec.Members != nil {
		st.Members = *rec.Members
	}
	if rec.Contractor != nil {
		st.Contractor = *rec.Contractor
	}
	if rec.PaymentLink != nil {
		st.PaymentLink = *rec.PaymentLink
	}
	return LoadResult{State: normalize(st), Status: StatusLoaded}
}

// normalize replaces nil collections with empty ones so JSON never holds null.
func normalize(st core.State) core.State {
	if st.History == nil {
		st.History = core.Ledger{}
	}
	for m, paid := range st.History {
		if paid == nil {
			st.History[m] = []string{}
		}
	}
	if st.Members == nil {
		st.Members = []string{}
	}
	return st
}

// StateStore loads and saves State through a Blob.
type StateStore struct {
	blob     Blob
	defaults core.State
	metrics  *metrics.Metrics
}

// NewStateStore wraps blob. defaults is the record served when nothing usable is stored.
func NewStateStore(blob Blob, defaults core.State, m *metrics.Metrics) *StateStore {
	if m == nil {
		m = metrics.Nop()
	}
	return &StateStore{blob: blob, defaults: defaults.Clone(), metrics: m}
}

// Load reads the record. It never fails; the outcome is reported in Status.
func (s *StateStore) Load(ctx context.Context) LoadResult {
	res := s.load(ctx)
	s.metrics.StateLoads.WithLabelValues(string(res.Status)).Inc()
	if res.Status != StatusLoaded {
		slog.WarnContext(ctx, "Using default state", "status", res.Status, "error", res.Err)
	}
	return res
}

func (s *StateStore) load(ctx context.Context) LoadResult {
	data, err := s.blob.Read(ctx)
	if errors.Is(err, ErrNotFound) {
		return LoadResult{State: s.defaults.Clone(), Status: StatusNotFound}
	}
	if err != nil {
		return LoadResult{State: s.defaults.Clone(), Status: StatusUnreadable, Err: fmt.Errorf("read state: %w", err)}
	}
	return Decode(data, s.defaults)
}

// Save rewrites the whole record.
func (s *StateStore) Save(ctx context.Context, st core.State) error {
	data, err := Encode(st)
	if err != nil {
		return err
	}
	if err := s.blob.Write(ctx, data); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	return nil
}

// Close releases the underlying blob.
func (s *StateStore) Close() error {
	return s.blob.Close()
}
