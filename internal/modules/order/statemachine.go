// README: Declarative order state graph for the Preparation and Fulfillment lifecycles.
package order

import (
	"errors"
	"fmt"
	"slices"
)

// Process is one lifecycle's transition declarations. Each entry is the total
// successor list for its state: declaring a state again in a later process
// replaces the earlier list instead of extending it.
type Process struct {
	Name        string
	Transitions map[State][]State
}

// Preparation covers payment settlement through to the kitchen.
var Preparation = Process{
	Name: "Preparation",
	Transitions: map[State][]State{
		StatePaymentSettled: {StateAwaitingPrep},
		StateAwaitingPrep:   {StateCancelled, StatePreparing},
		StatePreparing:      {},
	},
}

// Fulfillment covers both the delivery and the collection branch. The branches
// only meet in PartialRefund.
var Fulfillment = Process{
	Name: "Fulfillment",
	Transitions: map[State][]State{
		StateReadyForDelivery:   {StateOutForDelivery},
		StateOutForDelivery:     {StateDelivered, StateCouldNotDeliver},
		StateCouldNotDeliver:    {StateReadyForDelivery, StatePartialRefund},
		StateDelivered:          {StatePartialRefund},
		StateReadyForCollection: {StateCollected, StateNoCollection},
		StateNoCollection:       {StateReadyForCollection, StatePartialRefund},
		StateCollected:          {StatePartialRefund},
		StatePartialRefund:      {},
	},
}

// Policy switches the transitions the source left undecided.
type Policy struct {
	// AllowReversal lets a fulfilled order go back to its ready state, e.g.
	// when the customer rejects items at the door and the order is re-sent.
	AllowReversal bool
	// PreparationHandoff declares Preparing -> ReadyFor* so the two lifecycles
	// are connected inside this graph.
	PreparationHandoff bool
}

func (p Policy) processes() []Process {
	var out []Process
	if p.PreparationHandoff {
		out = append(out, Process{
			Name: "PreparationHandoff",
			Transitions: map[State][]State{
				StatePreparing: {StateReadyForDelivery, StateReadyForCollection},
			},
		})
	}
	if p.AllowReversal {
		out = append(out, Process{
			Name: "Reversal",
			Transitions: map[State][]State{
				StateDelivered: {StatePartialRefund, StateReadyForDelivery},
				StateCollected: {StatePartialRefund, StateReadyForCollection},
			},
		})
	}
	return out
}

// Graph is the merged, immutable transition table.
type Graph struct {
	next  map[State]map[State]struct{}
	order map[State][]State
}

// NewGraph merges the processes in order with replace semantics.
func NewGraph(processes ...Process) *Graph {
	g := &Graph{
		next:  make(map[State]map[State]struct{}),
		order: make(map[State][]State),
	}
	for _, p := range processes {
		for from, to := range p.Transitions {
			set := make(map[State]struct{}, len(to))
			list := make([]State, 0, len(to))
			for _, s := range to {
				if _, dup := set[s]; dup {
					continue
				}
				set[s] = struct{}{}
				list = append(list, s)
			}
			g.next[from] = set
			g.order[from] = list
		}
	}
	return g
}

// DefaultGraph is Preparation followed by Fulfillment plus whatever the policy
// adds on top.
func DefaultGraph(p Policy) *Graph {
	procs := append([]Process{Preparation, Fulfillment}, p.processes()...)
	return NewGraph(procs...)
}

// IsTransitionAllowed reports whether to is a declared successor of from.
func (g *Graph) IsTransitionAllowed(from, to State) bool {
	next, ok := g.next[from]
	if !ok {
		return false
	}
	_, ok = next[to]
	return ok
}

// Validate returns an *InvalidTransitionError when the change is not declared.
func (g *Graph) Validate(from, to State) error {
	if !g.IsTransitionAllowed(from, to) {
		return &InvalidTransitionError{From: from, To: to}
	}
	return nil
}

// Successors returns the declared successors of from in declaration order.
func (g *Graph) Successors(from State) []State {
	src := g.order[from]
	out := make([]State, len(src))
	copy(out, src)
	return out
}

// States returns every state that has a declaration, sorted by name.
func (g *Graph) States() []State {
	out := make([]State, 0, len(g.order))
	for s := range g.order {
		out = append(out, s)
	}
	slices.Sort(out)
	return out
}

type InvalidTransitionError struct {
	From State
	To   State
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid state transition from %q to %q", e.From, e.To)
}

func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidState
}

// AsInvalidTransition unwraps err into the offending transition, if any.
func AsInvalidTransition(err error) (*InvalidTransitionError, bool) {
	var ite *InvalidTransitionError
	if errors.As(err, &ite) {
		return ite, true
	}
	return nil, false
}
