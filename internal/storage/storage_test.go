package storage_test

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"splitpay/internal/core"
	"splitpay/internal/metrics"
	"splitpay/internal/storage"
	"splitpay/internal/storage/memory"
)

var defaults = core.DefaultState([]string{"Alice", "Bob", "Carol"})

func TestDecode(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		status storage.LoadStatus
		want   core.State
	}{
		{
			name:   "full record",
			input:  `{"history":{"2024-05":["Bob"]},"members":["Alice","Bob"],"contractor":"Bob","payment_link":"https://pay.example/x"}`,
			status: storage.StatusLoaded,
			want: core.State{
				History:     core.Ledger{"2024-05": {"Bob"}},
				Members:     []string{"Alice", "Bob"},
				Contractor:  "Bob",
				PaymentLink: "https://pay.example/x",
			},
		},
		{
			name:   "missing fields backfilled",
			input:  `{"history":{"2024-05":[]}}`,
			status: storage.StatusLoaded,
			want: core.State{
				History:    core.Ledger{"2024-05": {}},
				Members:    []string{"Alice", "Bob", "Carol"},
				Contractor: "Alice",
			},
		},
		{
			name:   "null paid list becomes empty",
			input:  `{"history":{"2024-05":null},"members":[]}`,
			status: storage.StatusLoaded,
			want: core.State{
				History:    core.Ledger{"2024-05": {}},
				Members:    []string{},
				Contractor: "Alice",
			},
		},
		{
			name:   "malformed json",
			input:  `{"history":`,
			status: storage.StatusCorrupt,
			want:   defaults,
		},
		{
			name:   "bad month key",
			input:  `{"history":{"May 2024":[]}}`,
			status: storage.StatusCorrupt,
			want:   defaults,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := storage.Decode([]byte(tt.input), defaults)
			if res.Status != tt.status {
				t.Fatalf("status = %q, want %q (err %v)", res.Status, tt.status, res.Err)
			}
			if !reflect.DeepEqual(res.State, tt.want) {
				t.Errorf("state = %+v, want %+v", res.State, tt.want)
			}
		})
	}
}

func TestEncode_Indented(t *testing.T) {
	data, err := storage.Encode(core.State{History: core.Ledger{"2024-05": nil}})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	s := string(data)
	if !strings.Contains(s, "\n    \"history\"") {
		t.Errorf("expected 4-space indentation, got:\n%s", s)
	}
	if strings.Contains(s, "null") {
		t.Errorf("expected no null values, got:\n%s", s)
	}
}

func TestStateStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := storage.NewStateStore(memory.New(), defaults, nil)

	in := core.State{
		History: core.Ledger{
			"2024-05": {"Bob", "Carol"},
			"2024-06": {},
		},
		Members:     []string{"Alice", "Bob", "Carol"},
		Contractor:  "Carol",
		PaymentLink: "https://pay.example/alice",
	}
	if err := store.Save(ctx, in); err != nil {
		t.Fatalf("Save: %v", err)
	}

	res := store.Load(ctx)
	if res.Status != storage.StatusLoaded {
		t.Fatalf("status = %q, want loaded", res.Status)
	}
	if !reflect.DeepEqual(res.State, in) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", res.State, in)
	}
}

func TestStateStore_LoadOutcomes(t *testing.T) {
	ctx := context.Background()

	t.Run("not found", func(t *testing.T) {
		m := metrics.New(nil)
		res := storage.NewStateStore(memory.New(), defaults, m).Load(ctx)
		if res.Status != storage.StatusNotFound || !res.UsingDefaults() {
			t.Fatalf("status = %q, want not_found", res.Status)
		}
		if !reflect.DeepEqual(res.State, defaults) {
			t.Errorf("state = %+v, want defaults", res.State)
		}
		if got := testutil.ToFloat64(m.StateLoads.WithLabelValues("not_found")); got != 1 {
			t.Errorf("not_found loads = %v, want 1", got)
		}
	})

	t.Run("corrupt", func(t *testing.T) {
		blob := memory.New()
		blob.Seed([]byte("not json"))
		res := storage.NewStateStore(blob, defaults, nil).Load(ctx)
		if res.Status != storage.StatusCorrupt {
			t.Fatalf("status = %q, want corrupt", res.Status)
		}
	})

	t.Run("unreadable", func(t *testing.T) {
		blob := memory.New()
		blob.Seed([]byte(`{"members":["X"]}`))
		blob.ReadErr = errors.New("permission denied")
		res := storage.NewStateStore(blob, defaults, nil).Load(ctx)
		if res.Status != storage.StatusUnreadable {
			t.Fatalf("status = %q, want unreadable", res.Status)
		}
		if res.Err == nil {
			t.Error("expected the read error to be reported")
		}
	})
}

func TestStateStore_DefaultsNotAliased(t *testing.T) {
	ctx := context.Background()
	store := storage.NewStateStore(memory.New(), defaults, nil)

	res := store.Load(ctx)
	res.State.Members[0] = "Mallory"
	res.State.History["2024-01"] = []string{"Mallory"}

	again := store.Load(ctx)
	if again.State.Members[0] != "Alice" || len(again.State.History) != 0 {
		t.Errorf("defaults were mutated through a load result: %+v", again.State)
	}
}
