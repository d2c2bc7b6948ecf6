// README: Scheduled maintenance that downgrades stale ready-for-collection orders.
package order

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const noCollectionReason = "collection window expired"

type SweepConfig struct {
	Interval time.Duration
	// After is how long past its collection date an order may stay
	// ReadyForCollection before the sweep marks it NoCollection.
	After time.Duration
}

// SweepNoCollection transitions every ReadyForCollection order dated at or
// before now-after to NoCollection. Each order gets its own transaction so one
// failure does not hold back the others; failures are joined into the error.
func (s *Service) SweepNoCollection(ctx context.Context, now time.Time, after time.Duration) (int, error) {
	stale, err := s.store.FindAcrossChannels(ctx, Filter{
		States:   []State{StateReadyForCollection},
		Window:   Until(now.Add(-after)),
		Excluded: ExcludedStates,
	})
	if err != nil {
		return 0, fmt.Errorf("sweep no-collection: %w", err)
	}

	var (
		done int
		errs []error
	)
	for _, o := range stale {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		_, err := s.Transition(ctx, TransitionCommand{
			ChannelID: o.ChannelID,
			OrderID:   o.ID,
			To:        StateNoCollection,
			ActorType: ActorSystem,
			Reason:    noCollectionReason,
		})
		if err != nil {
			s.log.Error("sweep no-collection",
				"order_id", o.ID,
				"code", o.Code,
				"error", err,
			)
			errs = append(errs, fmt.Errorf("order %s: %w", o.Code, err))
			continue
		}
		done++
	}
	if done > 0 {
		s.log.Info("sweep no-collection", "transitioned", done, "failed", len(errs))
	}
	return done, errors.Join(errs...)
}

// RunNoCollectionSweeper runs SweepNoCollection on every tick until ctx ends.
func (s *Service) RunNoCollectionSweeper(ctx context.Context, cfg SweepConfig) {
	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := s.SweepNoCollection(ctx, s.now(), cfg.After); err != nil {
				s.log.Error("no-collection sweep", "transitioned", n, "error", err)
			}
		}
	}
}
