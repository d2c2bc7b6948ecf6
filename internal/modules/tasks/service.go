// README: Task service evaluates every rule concurrently and concatenates in rule order.
package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"fulfillments/internal/modules/order"
	"fulfillments/internal/types"
)

// OrderStore answers filtered order queries scoped to one channel. Results are
// ordered by order id.
type OrderStore interface {
	Find(ctx context.Context, channelID types.ID, f order.Filter) ([]order.Order, error)
}

type Options struct {
	// Location is the business time zone for "today" and "tomorrow". Defaults to UTC.
	Location *time.Location
	// Links renders order references. Defaults to HTMLLinks rooted at /admin.
	Links   Formatter
	Rules   []Rule
	Metrics *Metrics
}

type Service struct {
	store   OrderStore
	rules   []Rule
	loc     *time.Location
	links   Formatter
	metrics *Metrics
	log     *slog.Logger
	now     func() time.Time
}

func NewService(store OrderStore, log *slog.Logger, opts Options) *Service {
	if log == nil {
		log = slog.Default()
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Links == nil {
		opts.Links = HTMLLinks{Base: "/admin"}
	}
	if opts.Rules == nil {
		opts.Rules = DefaultRules
	}
	return &Service{
		store:   store,
		rules:   slices.Clone(opts.Rules),
		loc:     opts.Location,
		links:   opts.Links,
		metrics: opts.Metrics,
		log:     log,
		now:     time.Now,
	}
}

// Rules returns a copy of the rule table in priority order.
func (s *Service) Rules() []Rule {
	return slices.Clone(s.rules)
}

// GetTasks lists the channel's tasks as of the current time.
func (s *Service) GetTasks(ctx context.Context, channelID types.ID) ([]Task, error) {
	return s.GetTasksAt(ctx, channelID, s.now())
}

// GetTasksAt lists the channel's tasks as of now. Any rule failure fails the
// whole call; no partial list is returned.
func (s *Service) GetTasksAt(ctx context.Context, channelID types.ID, now time.Time) ([]Task, error) {
	if channelID == "" {
		return nil, order.ErrBadRequest
	}
	defer s.metrics.since(time.Now())

	clock := NewClock(now, s.loc)
	results := make([][]Task, len(s.rules))

	g, gctx := errgroup.WithContext(ctx)
	for i, r := range s.rules {
		g.Go(func() error {
			tasks, err := s.evaluate(gctx, channelID, r, clock)
			if err != nil {
				return fmt.Errorf("rule %s: %w", r.Name, err)
			}
			results[i] = tasks
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.log.Error("get tasks", "channel_id", channelID, "error", err)
		return nil, err
	}

	var out []Task
	for i, tasks := range results {
		s.metrics.observe(s.rules[i].Name, len(tasks))
		out = append(out, tasks...)
	}
	return out, nil
}

func (s *Service) evaluate(ctx context.Context, channelID types.ID, r Rule, c Clock) ([]Task, error) {
	orders, err := s.store.Find(ctx, channelID, r.filter(c))
	if err != nil {
		return nil, err
	}
	tasks := make([]Task, 0, len(orders))
	for _, o := range orders {
		if !r.keep(o) {
			continue
		}
		tasks = append(tasks, r.task(s.links, o))
	}
	return tasks, nil
}
