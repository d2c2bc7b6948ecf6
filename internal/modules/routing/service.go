// README: Route service turns a channel's deliverable orders into a driving route link.
package routing

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"fulfillments/internal/maps"
	"fulfillments/internal/modules/channel"
	"fulfillments/internal/modules/order"
	"fulfillments/internal/modules/tasks"
	"fulfillments/internal/types"
)

type Geocoder interface {
	ResolvePlace(ctx context.Context, placeID string) (maps.Place, error)
	FindPlaceID(ctx context.Context, query string) (string, error)
}

// Estimator is optional; *maps.Geocoder implements it.
type Estimator interface {
	EstimateDrive(ctx context.Context, origin, destination string, waypoints []string) (time.Duration, error)
}

type ChannelSource interface {
	Get(ctx context.Context, id types.ID) (*channel.Channel, error)
}

type OrderStore interface {
	Find(ctx context.Context, channelID types.ID, f order.Filter) ([]order.Order, error)
}

type Options struct {
	// Location is the business time zone for the default window.
	Location  *time.Location
	Cache     Cache
	Estimator Estimator
}

type Service struct {
	channels  ChannelSource
	orders    OrderStore
	geo       Geocoder
	cache     Cache
	estimator Estimator
	loc       *time.Location
	log       *slog.Logger
	now       func() time.Time
}

func NewService(channels ChannelSource, orders OrderStore, geo Geocoder, log *slog.Logger, opts Options) *Service {
	if log == nil {
		log = slog.Default()
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Service{
		channels:  channels,
		orders:    orders,
		geo:       geo,
		cache:     opts.Cache,
		estimator: opts.Estimator,
		loc:       opts.Location,
		log:       log,
		now:       time.Now,
	}
}

// BuildRoute collects the channel's deliverable orders and links a route from
// the caller's position through every order to the channel.
func (s *Service) BuildRoute(ctx context.Context, req RouteRequest) (*Route, error) {
	if req.ChannelID == "" {
		return nil, order.ErrBadRequest
	}
	if req.Location == nil {
		return nil, &MissingLocationError{Entity: "your current location"}
	}
	if req.Window == (order.Window{}) {
		req.Window = tasks.NewClock(s.now(), s.loc).Today()
	}
	if req.IsDelivery == nil {
		req.IsDelivery = order.Bool(true)
	}

	ch, err := s.channels.Get(ctx, req.ChannelID)
	if err != nil {
		return nil, fmt.Errorf("load channel: %w", err)
	}
	if ch.GooglePlaceID == "" {
		return nil, &MissingLocationError{Entity: "channel " + ch.Code}
	}

	key := cacheKey(req)
	if cached, ok := s.cached(ctx, req.ChannelID, key); ok {
		return cached, nil
	}

	orders, err := s.orders.Find(ctx, req.ChannelID, order.Filter{
		States:     RouteStates,
		Window:     req.Window,
		IsDelivery: req.IsDelivery,
		Excluded:   order.ExcludedStates,
	})
	if err != nil {
		return nil, fmt.Errorf("find deliverable orders: %w", err)
	}
	for _, o := range orders {
		if o.GooglePlaceID == "" {
			return nil, &MissingLocationError{Entity: "order " + o.Code}
		}
	}

	query := strconv.FormatFloat(req.Location.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(req.Location.Lon, 'f', -1, 64)
	originID, err := s.geo.FindPlaceID(ctx, query)
	if err != nil {
		return nil, &GeocodingError{Context: "your current location", Err: err}
	}

	var origin, destination maps.Place
	waypoints := make([]maps.Place, len(orders))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		origin, err = s.resolve(gctx, originID, "your current location")
		return err
	})
	g.Go(func() (err error) {
		destination, err = s.resolve(gctx, ch.GooglePlaceID, "channel "+ch.Code)
		return err
	})
	for i, o := range orders {
		g.Go(func() (err error) {
			waypoints[i], err = s.resolve(gctx, o.GooglePlaceID, "order "+o.Code)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	route := &Route{
		Orders: orders,
		URL:    DirectionsURL(origin, destination, waypoints),
	}
	s.estimate(ctx, route, origin, destination, waypoints)
	s.store(ctx, req.ChannelID, key, route)
	return route, nil
}

func (s *Service) resolve(ctx context.Context, placeID, what string) (maps.Place, error) {
	p, err := s.geo.ResolvePlace(ctx, placeID)
	if err != nil {
		return maps.Place{}, &GeocodingError{Context: what, Err: err}
	}
	if p.PlaceID == "" {
		p.PlaceID = placeID
	}
	return p, nil
}

func (s *Service) estimate(ctx context.Context, r *Route, origin, destination maps.Place, waypoints []maps.Place) {
	if s.estimator == nil {
		return
	}
	ids := make([]string, len(waypoints))
	for i, w := range waypoints {
		ids[i] = w.PlaceID
	}
	d, err := s.estimator.EstimateDrive(ctx, origin.PlaceID, destination.PlaceID, ids)
	if err != nil {
		s.log.Warn("estimate drive time", "error", err)
		return
	}
	r.DriveSeconds = int64(d / time.Second)
}

func (s *Service) cached(ctx context.Context, channelID types.ID, key string) (*Route, bool) {
	if s.cache == nil {
		return nil, false
	}
	r, ok, err := s.cache.Get(ctx, channelID, key)
	if err != nil {
		s.log.Warn("route cache get", "channel_id", channelID, "error", err)
		return nil, false
	}
	return r, ok
}

func (s *Service) store(ctx context.Context, channelID types.ID, key string, r *Route) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, channelID, key, r); err != nil {
		s.log.Warn("route cache set", "channel_id", channelID, "error", err)
	}
}

func cacheKey(req RouteRequest) string {
	return fmt.Sprintf("%.5f,%.5f:%d:%d:%t:%t",
		req.Location.Lat, req.Location.Lon,
		req.Window.Start.UnixMicro(), req.Window.End.UnixMicro(), req.Window.OpenStart,
		*req.IsDelivery,
	)
}
