package tasks

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fulfillments/internal/modules/order"
	"fulfillments/internal/types"
)

var now = time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

func newTestService(store OrderStore) *Service {
	return NewService(store, nil, Options{Links: PlainLinks{}})
}

func TestScenarioPassedDeliveryDate(t *testing.T) {
	store := newFakeStore(order.Order{
		ID: "A", Code: "A", ChannelID: "ch1", State: order.StateReadyForDelivery,
		IsDelivery: true, DeliveryOrCollectionDate: now.Add(-25 * time.Hour),
	})

	got, err := newTestService(store).GetTasksAt(context.Background(), "ch1", now)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, TagHigh, got[0].Tag)
	assert.Equal(t, ColorError, got[0].ColorType)
	assert.Equal(t, "A passed delivery date, Reschedule Order", got[0].TaskName)
	assert.Equal(t, types.ID("A"), got[0].OrderID)
	assert.Equal(t, order.StateReadyForDelivery, got[0].State)
}

func TestScenarioCollectionToday(t *testing.T) {
	store := newFakeStore(order.Order{
		ID: "B", Code: "B", ChannelID: "ch1", State: order.StateReadyForCollection,
		DeliveryOrCollectionDate: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
	})

	got, err := newTestService(store).GetTasksAt(context.Background(), "ch1", now)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, TagLow, got[0].Tag)
	assert.Equal(t, "B is ready for collection today", got[0].TaskName)
}

func TestScenarioSubstitutionRefund(t *testing.T) {
	earlier := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	store := newFakeStore(
		order.Order{
			ID: "C", Code: "C", ChannelID: "ch1", State: order.StateCollected, DeliveryOrCollectionDate: earlier,
			Lines: []order.Line{{ID: "l1", SubstitutionState: order.SubstitutionAccepted}, {ID: "l2", SubstitutionState: order.SubstitutionRejected}},
		},
		order.Order{
			ID: "D", Code: "D", ChannelID: "ch1", State: order.StateCollected, DeliveryOrCollectionDate: earlier,
			Lines: []order.Line{{ID: "l3", SubstitutionState: order.SubstitutionAccepted}, {ID: "l4"}},
		},
		order.Order{
			ID: "E", Code: "E", ChannelID: "ch1", State: order.StateDelivered, IsDelivery: true,
			DeliveryOrCollectionDate: earlier.Add(-48 * time.Hour),
			Lines:                    []order.Line{{ID: "l5", SubstitutionState: order.SubstitutionRemoved}},
		},
	)

	got, err := newTestService(store).GetTasksAt(context.Background(), "ch1", now)
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "E"}, codes(got))
	for _, task := range got {
		assert.Equal(t, TagLow, task.Tag)
		assert.Equal(t, ColorSuccess, task.ColorType)
	}
}

func TestCollectionEscalationWindowsAreDisjoint(t *testing.T) {
	store := newFakeStore(
		readyForCollection("at-24h", now.Add(-24*time.Hour)),
		readyForCollection("just-under-24h", now.Add(-24*time.Hour+time.Microsecond)),
		readyForCollection("between", now.Add(-30*time.Hour)),
		readyForCollection("at-48h", now.Add(-48*time.Hour)),
		readyForCollection("past-48h", now.Add(-60*time.Hour)),
	)

	got, err := newTestService(store).GetTasksAt(context.Background(), "ch1", now)
	require.NoError(t, err)

	byRule := map[string][]string{}
	for _, task := range got {
		byRule[ruleFor(t, task)] = append(byRule[ruleFor(t, task)], task.Code)
	}
	assert.Equal(t, []string{"at-24h", "between"}, byRule["collection-overdue-24h"])
	assert.Equal(t, []string{"at-48h", "past-48h"}, byRule["collection-overdue-48h"])
	// -24h+1µs is neither overdue nor today's date in this clock
	assert.Len(t, got, 4)
}

func TestTodayUpperBoundIsInclusive(t *testing.T) {
	clock := NewClock(now, time.UTC)
	endOfDay := clock.EndOfDay(0)
	store := newFakeStore(
		order.Order{ID: "1", Code: "last", ChannelID: "ch1", State: order.StatePreparing, DeliveryOrCollectionDate: endOfDay},
		order.Order{ID: "2", Code: "next", ChannelID: "ch1", State: order.StatePreparing, DeliveryOrCollectionDate: endOfDay.Add(time.Microsecond)},
	)

	got, err := newTestService(store).GetTasksAt(context.Background(), "ch1", now)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Prepare last for today", got[0].TaskName)
	assert.Equal(t, TagHigh, got[0].Tag)
	assert.Equal(t, "Prepare next for tomorrow", got[1].TaskName)
	assert.Equal(t, TagLow, got[1].Tag)
}

func TestTasksFollowRuleOrderThenOrderID(t *testing.T) {
	today := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	store := newFakeStore(
		order.Order{ID: "o9", Code: "OUT", ChannelID: "ch1", State: order.StateOutForDelivery, IsDelivery: true, DeliveryOrCollectionDate: today},
		order.Order{ID: "o2", Code: "PREP-2", ChannelID: "ch1", State: order.StatePreparing, DeliveryOrCollectionDate: today},
		order.Order{ID: "o1", Code: "PREP-1", ChannelID: "ch1", State: order.StateAwaitingPrep, DeliveryOrCollectionDate: today},
		order.Order{ID: "o3", Code: "CND", ChannelID: "ch1", State: order.StateCouldNotDeliver, IsDelivery: true, DeliveryOrCollectionDate: today},
		order.Order{ID: "o4", Code: "DISPATCH", ChannelID: "ch1", State: order.StateReadyForDelivery, IsDelivery: true, DeliveryOrCollectionDate: today},
		order.Order{ID: "o5", Code: "NOCOL", ChannelID: "ch1", State: order.StateNoCollection, DeliveryOrCollectionDate: today},
		order.Order{ID: "o6", Code: "OTHER", ChannelID: "ch2", State: order.StatePreparing, DeliveryOrCollectionDate: today},
	)

	got, err := newTestService(store).GetTasksAt(context.Background(), "ch1", now)
	require.NoError(t, err)
	assert.Equal(t, []string{"CND", "PREP-1", "PREP-2", "NOCOL", "DISPATCH", "OUT"}, codes(got))
	assert.Equal(t, TagInProgress, got[len(got)-1].Tag)
	assert.Equal(t, ColorWarning, got[len(got)-1].ColorType)
	assert.Equal(t, "Finish Daily Deliveries", got[len(got)-1].TaskName)
}

func TestDeliveryFilter(t *testing.T) {
	today := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	store := newFakeStore(
		order.Order{ID: "o1", Code: "COLLECT", ChannelID: "ch1", State: order.StateReadyForDelivery, IsDelivery: false, DeliveryOrCollectionDate: today},
		order.Order{ID: "o2", Code: "OUT", ChannelID: "ch1", State: order.StateOutForDelivery, IsDelivery: false, DeliveryOrCollectionDate: today},
	)

	got, err := newTestService(store).GetTasksAt(context.Background(), "ch1", now)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestEveryQueryCarriesGlobalExclusions(t *testing.T) {
	store := newFakeStore()
	_, err := newTestService(store).GetTasksAt(context.Background(), "ch1", now)
	require.NoError(t, err)

	filters := store.recorded()
	require.Len(t, filters, len(DefaultRules))
	for _, f := range filters {
		assert.Equal(t, order.ExcludedStates, f.Excluded)
		assert.NotContains(t, f.Excluded, order.StateDelivered)
	}
}

// TestCountIsSumOfRuleMatches evaluates each rule's filter directly against
// a mixed data set and compares with the engine's output.
func TestCountIsSumOfRuleMatches(t *testing.T) {
	var orders []order.Order
	states := []order.State{
		order.StateDraft, order.StateCancelled, order.StatePaymentSettled,
		order.StateAwaitingPrep, order.StatePreparing,
		order.StateReadyForDelivery, order.StateOutForDelivery, order.StateDelivered, order.StateCouldNotDeliver,
		order.StateReadyForCollection, order.StateCollected, order.StateNoCollection, order.StatePartialRefund,
	}
	offsets := []time.Duration{-72 * time.Hour, -48 * time.Hour, -30 * time.Hour, -24 * time.Hour, -2 * time.Hour, 0, 5 * time.Hour, 20 * time.Hour, 40 * time.Hour}
	n := 0
	for _, s := range states {
		for _, off := range offsets {
			for _, delivery := range []bool{true, false} {
				n++
				orders = append(orders, order.Order{
					ID: types.ID(fmt.Sprintf("o%03d", n)), Code: fmt.Sprintf("C%03d", n), ChannelID: "ch1",
					State: s, IsDelivery: delivery, DeliveryOrCollectionDate: now.Add(off),
					Lines: []order.Line{{ID: "l", SubstitutionState: order.SubstitutionRemoved}},
				})
			}
		}
	}
	store := newFakeStore(orders...)

	got, err := newTestService(store).GetTasksAt(context.Background(), "ch1", now)
	require.NoError(t, err)

	clock := NewClock(now, time.UTC)
	want := 0
	for _, r := range DefaultRules {
		f := r.filter(clock)
		for i := range orders {
			if f.Matches(&orders[i]) && !slices.Contains(order.ExcludedStates, orders[i].State) {
				want++
			}
		}
	}
	assert.Equal(t, want, len(got))
	for _, task := range got {
		assert.NotContains(t, order.ExcludedStates, task.State)
	}
}

func TestGetTasksIsIdempotent(t *testing.T) {
	today := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	store := newFakeStore(
		order.Order{ID: "o1", Code: "P1", ChannelID: "ch1", State: order.StatePreparing, DeliveryOrCollectionDate: today},
		order.Order{ID: "o2", Code: "R1", ChannelID: "ch1", State: order.StateReadyForCollection, DeliveryOrCollectionDate: today},
	)
	svc := newTestService(store)

	first, err := svc.GetTasksAt(context.Background(), "ch1", now)
	require.NoError(t, err)
	second, err := svc.GetTasksAt(context.Background(), "ch1", now)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestStoreFailureFailsWholeCall(t *testing.T) {
	store := newFakeStore(order.Order{
		ID: "A", Code: "A", ChannelID: "ch1", State: order.StateReadyForDelivery,
		IsDelivery: true, DeliveryOrCollectionDate: now.Add(-25 * time.Hour),
	})
	store.failOn = order.StateNoCollection

	got, err := newTestService(store).GetTasksAt(context.Background(), "ch1", now)
	require.Error(t, err)
	assert.Nil(t, got)
	assert.True(t, errors.Is(err, order.ErrStoreUnavailable))
	assert.Contains(t, err.Error(), "no-collection")
}

func TestGetTasksRequiresChannel(t *testing.T) {
	_, err := newTestService(newFakeStore()).GetTasksAt(context.Background(), "", now)
	assert.ErrorIs(t, err, order.ErrBadRequest)
}

func TestBusinessTimeZone(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	late := time.Date(2026, 3, 10, 23, 30, 0, 0, time.UTC) // 01:30 on the 11th locally
	store := newFakeStore(
		order.Order{ID: "o1", Code: "LOCAL-TODAY", ChannelID: "ch1", State: order.StatePreparing, DeliveryOrCollectionDate: time.Date(2026, 3, 10, 22, 30, 0, 0, time.UTC)},
		order.Order{ID: "o2", Code: "LOCAL-YESTERDAY", ChannelID: "ch1", State: order.StatePreparing, DeliveryOrCollectionDate: time.Date(2026, 3, 10, 21, 30, 0, 0, time.UTC)},
	)
	svc := NewService(store, nil, Options{Location: loc, Links: PlainLinks{}})

	got, err := svc.GetTasksAt(context.Background(), "ch1", late)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Prepare LOCAL-TODAY for today", got[0].TaskName)
}

func TestClockDayBounds(t *testing.T) {
	c := NewClock(now, time.UTC)
	today := c.Today()
	assert.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), today.Start)
	assert.Equal(t, time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC).Add(-time.Microsecond), today.End)
	tomorrow := c.Tomorrow()
	assert.Equal(t, today.End.Add(time.Microsecond), tomorrow.Start)
}

func TestHTMLLinks(t *testing.T) {
	f := HTMLLinks{Base: "/admin/"}
	got := f.Link(order.Order{ID: "42", Code: "AB<C", State: order.StateReadyForDelivery})
	assert.Equal(t, `<a class="button-ghost" href="/admin/orders/42"><span>AB&lt;C</span></a>`, got)

	draft := f.Link(order.Order{ID: "7", Code: "D7", State: order.StateDraft})
	assert.True(t, strings.Contains(draft, `href="/admin/orders/draft/7"`))
}

func TestMetricsCountMatchesPerRule(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	today := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	store := newFakeStore(
		order.Order{ID: "o1", Code: "P1", ChannelID: "ch1", State: order.StatePreparing, DeliveryOrCollectionDate: today},
		order.Order{ID: "o2", Code: "P2", ChannelID: "ch1", State: order.StateAwaitingPrep, DeliveryOrCollectionDate: today},
	)
	svc := NewService(store, nil, Options{Metrics: metrics})

	_, err := svc.GetTasksAt(context.Background(), "ch1", now)
	require.NoError(t, err)
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.matches.WithLabelValues("prepare-today")))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.matches.WithLabelValues("collection-today")))
	assert.Equal(t, 1, testutil.CollectAndCount(metrics.duration))
}

func TestRulesReturnsCopy(t *testing.T) {
	svc := newTestService(newFakeStore())
	rules := svc.Rules()
	require.Len(t, rules, 11)
	rules[0].Name = "changed"
	assert.Equal(t, "could-not-deliver", svc.Rules()[0].Name)
}

func readyForCollection(code string, date time.Time) order.Order {
	return order.Order{ID: types.ID(code), Code: code, ChannelID: "ch1", State: order.StateReadyForCollection, DeliveryOrCollectionDate: date}
}

func codes(tasks []Task) []string {
	out := make([]string, len(tasks))
	for i, task := range tasks {
		out[i] = task.Code
	}
	return out
}

// ruleFor recovers the producing rule from the task name; the collection
// escalation templates are distinct.
func ruleFor(t *testing.T, task Task) string {
	t.Helper()
	switch {
	case strings.HasSuffix(task.TaskName, "was not collected, Contact Customer"):
		return "collection-overdue-24h"
	case strings.HasSuffix(task.TaskName, "still not collected, Mark as No Collection"):
		return "collection-overdue-48h"
	case strings.HasSuffix(task.TaskName, "ready for collection today"):
		return "collection-today"
	}
	t.Fatalf("unexpected task %q", task.TaskName)
	return ""
}

// fakeStore applies filters in memory the same way the Postgres store does.
type fakeStore struct {
	mu      sync.Mutex
	orders  []order.Order
	filters []order.Filter
	failOn  order.State
}

func newFakeStore(orders ...order.Order) *fakeStore {
	return &fakeStore{orders: orders}
}

func (s *fakeStore) Find(_ context.Context, channelID types.ID, f order.Filter) ([]order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filters = append(s.filters, f)
	if s.failOn != "" && slices.Contains(f.States, s.failOn) {
		return nil, fmt.Errorf("%w: find orders: connection reset", order.ErrStoreUnavailable)
	}
	var out []order.Order
	for i := range s.orders {
		o := s.orders[i]
		if o.ChannelID == channelID && f.Matches(&o) {
			if !f.WithLines {
				o.Lines = nil
			}
			out = append(out, o)
		}
	}
	slices.SortFunc(out, func(a, b order.Order) int { return strings.Compare(string(a.ID), string(b.ID)) })
	return out, nil
}

func (s *fakeStore) recorded() []order.Filter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.filters)
}
