// Package memory is an in-process stand-in for the spreadsheet.
package memory

import (
	"context"
	"sync"

	"splitpay/internal/core"
	"splitpay/internal/sheets"
)

type Store struct {
	mu     sync.Mutex
	values [][]any
	writes int
}

var (
	_ sheets.TableMirror = (*Store)(nil)
	_ sheets.TableSource = (*Store)(nil)
)

func New() *Store {
	return &Store{}
}

func (s *Store) MirrorTable(_ context.Context, t core.Table) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = sheets.Encode(t)
	s.writes++
	return nil
}

func (s *Store) ReadTable(_ context.Context) ([]core.MonthKey, []core.TableRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sheets.Decode(s.values)
}

// SetValues replaces the grid, as a person editing the sheet would.
func (s *Store) SetValues(values [][]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = values
}

// Values returns the current grid.
func (s *Store) Values() [][]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values
}

// Writes counts MirrorTable calls.
func (s *Store) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}
