package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"splitpay/internal/amqp"
	"splitpay/internal/core"
	applog "splitpay/internal/log"
	"splitpay/internal/metrics"
	"splitpay/internal/rates"
	"splitpay/internal/sheets"
	"splitpay/internal/storage"
)

var (
	// ErrStateUnavailable refuses writes while the stored record cannot be read,
	// so the defaults on screen never replace it.
	ErrStateUnavailable = errors.New("stored state is unreadable; changes are disabled")
	ErrNotifierDisabled = errors.New("no chat notifier configured")
	ErrSheetDisabled    = errors.New("no spreadsheet configured")
)

type (
	// StateRepository loads and rewrites the whole State.
	StateRepository interface {
		Load(ctx context.Context) storage.LoadResult
		Save(ctx context.Context, st core.State) error
	}

	EventPublisher interface {
		PublishLedgerEvent(ctx context.Context, ev *amqp.LedgerEvent) error
	}

	Notifier interface {
		Notify(ctx context.Context, text string) error
	}
)

// Options wires the optional collaborators. Nil ones are skipped.
type Options struct {
	Pricing   core.Pricing
	Rates     rates.Provider
	Location  *time.Location
	Now       func() time.Time
	Publisher EventPublisher
	Mirror    sheets.TableMirror
	Source    sheets.TableSource
	Notifier  Notifier
	Metrics   *metrics.Metrics
}

// LedgerService runs every read and every load-mutate-save cycle on the state.
// Mutations are serialized within the process.
type LedgerService struct {
	mu   sync.Mutex
	repo StateRepository
	opts Options
	log  *applog.Logger
}

func NewLedgerService(repo StateRepository, opts Options) *LedgerService {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Nop()
	}
	if opts.Rates == nil {
		opts.Rates = rates.Static{Quote: rates.Quote{Value: rates.DefaultConfig().Fallback, Source: rates.SourceFallback}}
	}
	return &LedgerService{
		repo: repo,
		opts: opts,
		log:  applog.New(applog.Config{Handler: slog.Default().Handler(), Component: applog.ComponentLedger}),
	}
}

// Dashboard is what the main page shows.
type Dashboard struct {
	core.Summary
	Quote      rates.Quote
	LoadStatus storage.LoadStatus
	// ReadOnly is set when the stored record could not be read.
	ReadOnly bool
}

// CurrentMonth returns the month key of now in the configured location.
func (s *LedgerService) CurrentMonth() core.MonthKey {
	return core.MonthOf(s.opts.Now().In(s.opts.Location))
}

// Dashboard loads the state and derives everything the view needs.
func (s *LedgerService) Dashboard(ctx context.Context) Dashboard {
	quote := s.opts.Rates.Rate(ctx)

	s.mu.Lock()
	res := s.repo.Load(ctx)
	s.mu.Unlock()

	return Dashboard{
		Summary:    core.Summarize(res.State, s.opts.Pricing, quote.Value, s.CurrentMonth()),
		Quote:      quote,
		LoadStatus: res.Status,
		ReadOnly:   res.Status == storage.StatusUnreadable,
	}
}

// Notice renders the reminder text for the current state.
func (s *LedgerService) Notice(ctx context.Context) string {
	return s.Dashboard(ctx).Notice()
}

// SendNotice posts the reminder to the configured chat.
func (s *LedgerService) SendNotice(ctx context.Context) error {
	if s.opts.Notifier == nil {
		return ErrNotifierDisabled
	}
	if err := s.opts.Notifier.Notify(ctx, s.Notice(ctx)); err != nil {
		return fmt.Errorf("send notice: %w", err)
	}
	return nil
}

func (s *LedgerService) AddMember(ctx context.Context, name string) error {
	return s.mutate(ctx, applog.OpAddMember, &change{member: strings.TrimSpace(name)}, func(st *core.State, _ core.MonthKey) (bool, error) {
		return true, st.AddMember(name)
	})
}

func (s *LedgerService) RemoveMember(ctx context.Context, name string) error {
	return s.mutate(ctx, applog.OpRemoveMember, &change{member: strings.TrimSpace(name)}, func(st *core.State, _ core.MonthKey) (bool, error) {
		return true, st.RemoveMember(name)
	})
}

func (s *LedgerService) SetContractor(ctx context.Context, name string) error {
	return s.mutate(ctx, applog.OpSetContractor, &change{member: name}, func(st *core.State, _ core.MonthKey) (bool, error) {
		if st.Contractor == name {
			return false, nil
		}
		return true, st.SetContractor(name)
	})
}

func (s *LedgerService) SetPaymentLink(ctx context.Context, link string) error {
	return s.mutate(ctx, applog.OpSetPaymentLink, nil, func(st *core.State, _ core.MonthKey) (bool, error) {
		before := st.PaymentLink
		if err := st.SetPaymentLink(link); err != nil {
			return false, err
		}
		return st.PaymentLink != before, nil
	})
}

// AddNextMonth appends an empty slot after the latest month of the seeded ledger.
func (s *LedgerService) AddNextMonth(ctx context.Context) (core.MonthKey, error) {
	var added core.MonthKey
	ch := &change{}
	err := s.mutate(ctx, applog.OpAddMonth, ch, func(st *core.State, _ core.MonthKey) (bool, error) {
		latest, _ := st.History.Latest()
		next, err := core.NextMonth(latest)
		if err != nil {
			return false, err
		}
		if _, exists := st.History[next]; exists {
			return false, fmt.Errorf("%w: %s", core.ErrMonthExists, next)
		}
		st.History[next] = []string{}
		added = next
		ch.month = next
		return true, nil
	})
	return added, err
}

func (s *LedgerService) DeleteMonth(ctx context.Context, month string) error {
	key, err := core.ParseMonthKey(month)
	if err != nil {
		return err
	}
	return s.mutate(ctx, applog.OpDeleteMonth, &change{month: key}, func(st *core.State, _ core.MonthKey) (bool, error) {
		return true, st.DeleteMonth(key)
	})
}

// ApplyTable replaces the ledger with the one rebuilt from an edited table.
// Nothing is written when the result equals what is stored.
func (s *LedgerService) ApplyTable(ctx context.Context, months []core.MonthKey, rows []core.TableRow) (bool, error) {
	changed := false
	err := s.mutate(ctx, applog.OpApplyTable, nil, func(st *core.State, _ core.MonthKey) (bool, error) {
		rebuilt := core.RebuildLedger(months, rows)
		if rebuilt.Equal(st.History) {
			return false, nil
		}
		st.History = rebuilt
		changed = true
		return true, nil
	})
	return changed, err
}

// PullSheet applies the spreadsheet copy of the table to the ledger.
func (s *LedgerService) PullSheet(ctx context.Context) (bool, error) {
	if s.opts.Source == nil {
		return false, ErrSheetDisabled
	}
	months, rows, err := s.opts.Source.ReadTable(ctx)
	if err != nil {
		return false, fmt.Errorf("read sheet: %w", err)
	}
	return s.ApplyTable(ctx, months, rows)
}

// change names what a mutation touched. An empty month means the current one.
type change struct {
	month  core.MonthKey
	member string
}

// mutate loads the state, seeds the current month, applies fn and saves when
// fn reports a change. Side channels run after a successful save and only log
// their failures. fn may fill ch; it is read after the save.
func (s *LedgerService) mutate(ctx context.Context, op string, ch *change, fn func(st *core.State, current core.MonthKey) (bool, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := s.repo.Load(ctx)
	if res.Status == storage.StatusUnreadable {
		return fmt.Errorf("%w: %v", ErrStateUnavailable, res.Err)
	}

	current := s.CurrentMonth()
	st := res.State.Clone()
	st.History = st.History.Seeded(current).Clone()

	changed, err := fn(&st, current)
	if err != nil {
		s.log.WarnContext(ctx, "Ledger change rejected", applog.FieldOperation, op, applog.FieldError, err)
		return err
	}
	if !changed {
		return nil
	}

	if err := s.repo.Save(ctx, st); err != nil {
		s.log.ErrorContext(ctx, "Failed to save state", applog.FieldOperation, op, applog.FieldError, err)
		return fmt.Errorf("save state: %w", err)
	}
	s.opts.Metrics.StateSaves.WithLabelValues(op).Inc()
	s.log.InfoContext(ctx, "State saved", applog.FieldOperation, op, applog.FieldLoadStatus, res.Status)

	if ch == nil {
		ch = &change{}
	}
	s.afterSave(ctx, op, *ch, st, current)
	return nil
}

func (s *LedgerService) afterSave(ctx context.Context, op string, ch change, st core.State, current core.MonthKey) {
	if s.opts.Publisher == nil && s.opts.Mirror == nil {
		return
	}

	rate := 0.0
	if s.opts.Publisher != nil {
		rate = s.opts.Rates.Rate(ctx).Value
	}
	summary := core.Summarize(st, s.opts.Pricing, rate, current)

	if s.opts.Publisher != nil {
		ev := amqp.NewLedgerEvent(op)
		ev.Month = string(current)
		if ch.month != "" {
			ev.Month = string(ch.month)
		}
		ev.Member = ch.member
		ev.PerHead = int64(summary.PerHead)
		for member, debt := range summary.Debts {
			ev.Debts[member] = int64(debt)
		}
		if err := s.opts.Publisher.PublishLedgerEvent(ctx, ev); err != nil {
			s.log.WarnContext(ctx, "Failed to publish ledger event", applog.FieldOperation, op, applog.FieldError, err)
		}
	}

	if s.opts.Mirror != nil {
		if err := s.opts.Mirror.MirrorTable(ctx, summary.Table()); err != nil {
			s.log.WarnContext(ctx, "Failed to mirror table to sheet", applog.FieldOperation, op, applog.FieldError, err)
		}
	}
}
