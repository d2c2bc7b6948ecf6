// README: Broadcasts committed transitions to a message broker and to dashboard push topics.
package order

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"fulfillments/internal/types"
)

// Broker is a message bus that takes JSON bodies; *infra.AMQP implements it.
type Broker interface {
	Publish(ctx context.Context, key, messageID string, body []byte) error
}

type eventMessage struct {
	ID        string    `json:"id"`
	OrderID   string    `json:"orderId"`
	OrderCode string    `json:"orderCode"`
	ChannelID string    `json:"channelId"`
	FromState State     `json:"fromState"`
	ToState   State     `json:"toState"`
	ActorType string    `json:"actorType"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// BrokerPublisher sends every transition as "order.transition.<to state>".
type BrokerPublisher struct {
	broker  Broker
	timeout time.Duration
}

func NewBrokerPublisher(b Broker, timeout time.Duration) *BrokerPublisher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &BrokerPublisher{broker: b, timeout: timeout}
}

func (p *BrokerPublisher) PublishTransition(ctx context.Context, e Event) error {
	body, err := json.Marshal(eventMessage{
		ID:        e.ID,
		OrderID:   string(e.OrderID),
		OrderCode: e.OrderCode,
		ChannelID: string(e.ChannelID),
		FromState: e.FromState,
		ToState:   e.ToState,
		ActorType: e.ActorType,
		Reason:    e.Reason,
		CreatedAt: e.CreatedAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal transition event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	key := TransitionRoutingKey(e.ToState)
	if err := p.broker.Publish(ctx, key, e.ID, body); err != nil {
		return fmt.Errorf("publish %s: %w", key, err)
	}
	return nil
}

func TransitionRoutingKey(to State) string {
	return "order.transition." + strings.ToLower(string(to))
}

// Pusher delivers a data message to every client subscribed to topic;
// *infra.FCM implements it.
type Pusher interface {
	SendTopic(ctx context.Context, topic string, data map[string]string) (string, error)
}

// PushPublisher tells open dashboards of the order's channel that it moved,
// so their task lists refresh.
type PushPublisher struct {
	pusher Pusher
}

func NewPushPublisher(p Pusher) *PushPublisher {
	return &PushPublisher{pusher: p}
}

func (p *PushPublisher) PublishTransition(ctx context.Context, e Event) error {
	_, err := p.pusher.SendTopic(ctx, ChannelTopic(e.ChannelID), map[string]string{
		"type":       "order_transition",
		"order_id":   string(e.OrderID),
		"order_code": e.OrderCode,
		"from":       string(e.FromState),
		"to":         string(e.ToState),
	})
	return err
}

// ChannelTopic is the FCM topic a channel's dashboards subscribe to.
func ChannelTopic(channelID types.ID) string {
	return "channel-" + string(channelID)
}
