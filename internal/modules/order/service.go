// README: Order service validates transitions against the state graph and persists them.
package order

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"fulfillments/internal/types"
)

// Repository is the persistence the service needs. *Store implements it.
type Repository interface {
	Get(ctx context.Context, id types.ID) (*Order, error)
	Find(ctx context.Context, channelID types.ID, f Filter) ([]Order, error)
	FindAcrossChannels(ctx context.Context, f Filter) ([]Order, error)
	UpdateState(ctx context.Context, id types.ID, from, to State, version int) (bool, error)
	AppendEvent(ctx context.Context, e *Event) error
	InTx(ctx context.Context, fn func(Repository) error) error
}

// Publisher is told about every committed transition.
type Publisher interface {
	PublishTransition(ctx context.Context, e Event) error
}

var (
	ErrInvalidState     = errors.New("invalid state transition")
	ErrNotFound         = errors.New("order not found")
	ErrConflict         = errors.New("order state conflict")
	ErrBadRequest       = errors.New("bad request")
	ErrStoreUnavailable = errors.New("order store unavailable")
)

const (
	ActorAdmin  = "administrator"
	ActorSystem = "system"
)

type Service struct {
	store      Repository
	graph      *Graph
	publishers []Publisher
	log        *slog.Logger
	now        func() time.Time
}

func NewService(store Repository, graph *Graph, log *slog.Logger, publishers ...Publisher) *Service {
	if graph == nil {
		graph = DefaultGraph(Policy{})
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		store:      store,
		graph:      graph,
		publishers: publishers,
		log:        log,
		now:        time.Now,
	}
}

// Graph exposes the state graph the service validates against.
func (s *Service) Graph() *Graph {
	return s.graph
}

// IsTransitionAllowed is the host's transition-validation hook.
func (s *Service) IsTransitionAllowed(from, to State) bool {
	return s.graph.IsTransitionAllowed(from, to)
}

type TransitionCommand struct {
	// ChannelID is the caller's channel; orders of other channels are not found.
	ChannelID types.ID
	OrderID   types.ID
	To        State
	ActorType string
	Reason    string
}

// Get returns the order when it belongs to channelID and ErrNotFound otherwise.
func (s *Service) Get(ctx context.Context, channelID, id types.ID) (*Order, error) {
	if channelID == "" || id == "" {
		return nil, ErrBadRequest
	}
	o, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.ChannelID != channelID {
		return nil, ErrNotFound
	}
	return o, nil
}

// Transition moves an order to cmd.To. The state change and its event are
// written in one transaction; publishers run after commit.
func (s *Service) Transition(ctx context.Context, cmd TransitionCommand) (*Event, error) {
	if cmd.ChannelID == "" || cmd.OrderID == "" || cmd.To == "" {
		return nil, ErrBadRequest
	}
	if cmd.ActorType == "" {
		cmd.ActorType = ActorAdmin
	}

	var ev *Event
	err := s.store.InTx(ctx, func(tx Repository) error {
		var err error
		ev, err = s.transition(ctx, tx, cmd)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, *ev)
	return ev, nil
}

func (s *Service) transition(ctx context.Context, tx Repository, cmd TransitionCommand) (*Event, error) {
	o, err := tx.Get(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}
	if o.ChannelID != cmd.ChannelID {
		return nil, ErrNotFound
	}
	if err := s.graph.Validate(o.State, cmd.To); err != nil {
		return nil, err
	}
	ok, err := tx.UpdateState(ctx, o.ID, o.State, cmd.To, o.StateVersion)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict
	}
	ev := &Event{
		ID:        uuid.NewString(),
		OrderID:   o.ID,
		OrderCode: o.Code,
		ChannelID: o.ChannelID,
		FromState: o.State,
		ToState:   cmd.To,
		ActorType: cmd.ActorType,
		Reason:    cmd.Reason,
		CreatedAt: s.now(),
	}
	if err := tx.AppendEvent(ctx, ev); err != nil {
		return nil, err
	}
	return ev, nil
}

func (s *Service) publish(ctx context.Context, ev Event) {
	for _, p := range s.publishers {
		if err := p.PublishTransition(ctx, ev); err != nil {
			s.log.Warn("publish transition",
				"order_id", ev.OrderID,
				"from", ev.FromState,
				"to", ev.ToState,
				"error", err,
			)
		}
	}
}
