package storage

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"

	"rda_bot/internal/filter"
	"rda_bot/internal/model"
)

func newTestDB(t *testing.T, opts ...Option) *SQLite {
	t.Helper()
	s, err := NewSQLite(":memory:", opts...)
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func ptr(f float64) *float64 { return &f }

func TestSubscriptions(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	for _, id := range []int64{30, 10, 20} {
		if err := s.UpsertSubscriber(ctx, model.Subscriber{ChatID: id, FirstName: "op"}); err != nil {
			t.Fatalf("upsert subscriber: %v", err)
		}
	}
	if err := s.UpsertSubscriber(ctx, model.Subscriber{ChatID: 10, FirstName: "renamed", Username: "r1abc"}); err != nil {
		t.Fatalf("upsert existing subscriber: %v", err)
	}

	steps := []struct {
		chatID int64
		kind   model.SubscriptionKind
		on     bool
	}{
		{30, model.KindSpots, true},
		{10, model.KindSpots, true},
		{10, model.KindSpots, true},
		{20, model.KindAnnouncements, true},
		{10, model.KindAnnouncements, true},
		{20, model.KindSpots, false},
		{30, model.KindSpots, false},
		{30, model.KindSpots, true},
	}
	for _, st := range steps {
		if err := s.SetSubscription(ctx, st.chatID, st.kind, st.on); err != nil {
			t.Fatalf("set subscription %+v: %v", st, err)
		}
	}

	spots, err := s.ListSubscribers(ctx, model.KindSpots)
	if err != nil {
		t.Fatalf("list spot subscribers: %v", err)
	}
	if diff := cmp.Diff([]int64{10, 30}, spots); diff != "" {
		t.Errorf("spot subscribers mismatch (-want +got):\n%s", diff)
	}

	ann, err := s.ListSubscribers(ctx, model.KindAnnouncements)
	if err != nil {
		t.Fatalf("list announcement subscribers: %v", err)
	}
	if diff := cmp.Diff([]int64{10, 20}, ann); diff != "" {
		t.Errorf("announcement subscribers mismatch (-want +got):\n%s", diff)
	}

	counts, err := s.CountSubscribers(ctx)
	if err != nil {
		t.Fatalf("count subscribers: %v", err)
	}
	wantCounts := map[model.SubscriptionKind]int{model.KindSpots: 2, model.KindAnnouncements: 2}
	if diff := cmp.Diff(wantCounts, counts); diff != "" {
		t.Errorf("counts mismatch (-want +got):\n%s", diff)
	}
}

func TestRDAFilters(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	added, err := s.AddRDAFilters(ctx, 1, []string{"AD-01", "BR-10"})
	if err != nil {
		t.Fatalf("add filters: %v", err)
	}
	if diff := cmp.Diff([]string{"AD-01", "BR-10"}, added); diff != "" {
		t.Errorf("added mismatch (-want +got):\n%s", diff)
	}

	added, err = s.AddRDAFilters(ctx, 1, []string{"BR-10", "MO-05"})
	if err != nil {
		t.Fatalf("add filters again: %v", err)
	}
	if diff := cmp.Diff([]string{"MO-05"}, added); diff != "" {
		t.Errorf("second add mismatch (-want +got):\n%s", diff)
	}

	if _, err := s.AddRDAFilters(ctx, 2, []string{"ZZ-99"}); err != nil {
		t.Fatalf("add filters for other chat: %v", err)
	}

	got, err := s.GetRDAFilters(ctx, 1)
	if err != nil {
		t.Fatalf("get filters: %v", err)
	}
	if diff := cmp.Diff([]string{"AD-01", "BR-10", "MO-05"}, got); diff != "" {
		t.Errorf("filters mismatch (-want +got):\n%s", diff)
	}

	if err := s.ClearRDAFilters(ctx, 1); err != nil {
		t.Fatalf("clear filters: %v", err)
	}
	got, err = s.GetRDAFilters(ctx, 1)
	if err != nil {
		t.Fatalf("get filters after clear: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("filters after clear = %v, want empty", got)
	}

	other, _ := s.GetRDAFilters(ctx, 2)
	if diff := cmp.Diff([]string{"ZZ-99"}, other); diff != "" {
		t.Errorf("other chat filters mismatch (-want +got):\n%s", diff)
	}
}

func TestFilterConfig(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	mode, low, high, err := s.GetFilterConfig(ctx, 7)
	if err != nil {
		t.Fatalf("get default config: %v", err)
	}
	if mode != model.ModeAny || low != nil || high != nil {
		t.Errorf("default config = %q %v %v, want ANY nil nil", mode, low, high)
	}

	if err := s.SetBand(ctx, 7, ptr(7000), ptr(7200)); err != nil {
		t.Fatalf("set band: %v", err)
	}
	if err := s.SetMode(ctx, 7, "CW"); err != nil {
		t.Fatalf("set mode: %v", err)
	}
	if err := s.SetTemplate(ctx, 7, "{callsign}"); err != nil {
		t.Fatalf("set template: %v", err)
	}
	if _, err := s.AddRDAFilters(ctx, 7, []string{"AD-01"}); err != nil {
		t.Fatalf("add filters: %v", err)
	}

	got, err := filter.Load(ctx, s, 7)
	if err != nil {
		t.Fatalf("load filter: %v", err)
	}
	want := model.SubscriberFilter{
		Mode:     "CW",
		BandLow:  ptr(7000),
		BandHigh: ptr(7200),
		RDAs:     []string{"AD-01"},
		Template: "{callsign}",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("filter mismatch (-want +got):\n%s", diff)
	}

	if err := s.SetMode(ctx, 7, ""); err != nil {
		t.Fatalf("reset mode: %v", err)
	}
	if err := s.SetBand(ctx, 7, nil, nil); err != nil {
		t.Fatalf("reset band: %v", err)
	}
	if err := s.SetTemplate(ctx, 7, ""); err != nil {
		t.Fatalf("reset template: %v", err)
	}
	got, err = filter.Load(ctx, s, 7)
	if err != nil {
		t.Fatalf("load filter after reset: %v", err)
	}
	want = model.SubscriberFilter{Mode: model.ModeAny, RDAs: []string{"AD-01"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("reset filter mismatch (-want +got):\n%s", diff)
	}
}

func TestUnknownChatDefaults(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	tmpl, err := s.GetTemplate(ctx, 404)
	if err != nil {
		t.Fatalf("get template: %v", err)
	}
	if tmpl != "" {
		t.Errorf("template = %q, want empty", tmpl)
	}
	mode, low, high, err := s.GetFilterConfig(ctx, 404)
	if err != nil {
		t.Fatalf("get filter config: %v", err)
	}
	if mode != model.ModeAny || low != nil || high != nil {
		t.Errorf("config = %q %v %v, want ANY nil nil", mode, low, high)
	}
}

func TestTemplateKeepsSubscriberNames(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	if err := s.SetTemplate(ctx, 5, "{rda}"); err != nil {
		t.Fatalf("set template before subscriber: %v", err)
	}
	if err := s.UpsertSubscriber(ctx, model.Subscriber{ChatID: 5, FirstName: "Ivan"}); err != nil {
		t.Fatalf("upsert subscriber: %v", err)
	}
	got, err := s.GetTemplate(ctx, 5)
	if err != nil {
		t.Fatalf("get template: %v", err)
	}
	if got != "{rda}" {
		t.Errorf("template = %q, want %q", got, "{rda}")
	}
}

func TestIsNewBounded(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t, WithSeenLimit(3))

	tests := []struct {
		key  string
		want bool
	}{
		{"a", true},
		{"b", true},
		{"a", false},
		{"c", true},
		{"d", true},
		{"b", false},
		{"e", true},
		{"a", true},
	}
	for _, tt := range tests {
		got, err := s.IsNew(ctx, tt.key)
		if err != nil {
			t.Fatalf("is new %q: %v", tt.key, err)
		}
		if got != tt.want {
			t.Errorf("IsNew(%q) = %v, want %v", tt.key, got, tt.want)
		}
	}

	keys, err := s.seenKeys(ctx)
	if err != nil {
		t.Fatalf("seen keys: %v", err)
	}
	if diff := cmp.Diff([]string{"d", "e", "a"}, keys); diff != "" {
		t.Errorf("retained keys mismatch (-want +got):\n%s", diff)
	}
}

func TestIsNewConcurrent(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	var (
		wg    sync.WaitGroup
		fresh atomic.Int32
	)
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				ok, err := s.IsNew(ctx, fmt.Sprintf("k%d", i))
				if err != nil {
					t.Errorf("is new: %v", err)
					return
				}
				if ok {
					fresh.Add(1)
				}
			}
		}()
	}
	wg.Wait()

	if got := fresh.Load(); got != 50 {
		t.Errorf("fresh = %d, want 50", got)
	}
}
