package realtime

import (
	"context"
	"encoding/json"
	"log"

	"github.com/redis/go-redis/v9"
)

// Channel carries cross-process realtime events. The worker publishes here;
// the API process relays onto its local hub.
const Channel = "realtime:events"

// Scope targets for bridged events.
const (
	scopeUser = "user"
	scopeRoom = "room"
	scopeAll  = "all"
)

type bridgedEvent struct {
	Scope   string          `json:"scope"`
	UserID  uint            `json:"userId,omitempty"`
	Room    string          `json:"room,omitempty"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// Publisher is a Broadcaster that forwards events over Redis pub/sub. The
// worker holds no websocket connections, so its emits ride the bridge to
// whatever process does.
type Publisher struct {
	client *redis.Client
}

// NewPublisher creates a pub/sub backed broadcaster.
func NewPublisher(client *redis.Client) *Publisher {
	if client == nil {
		panic("redis client is required")
	}
	return &Publisher{client: client}
}

func (p *Publisher) EmitToUser(userID uint, event string, payload interface{}) {
	p.publish(bridgedEvent{Scope: scopeUser, UserID: userID, Event: event}, payload)
}

func (p *Publisher) EmitToRoom(room, event string, payload interface{}) {
	p.publish(bridgedEvent{Scope: scopeRoom, Room: room, Event: event}, payload)
}

func (p *Publisher) Broadcast(event string, payload interface{}) {
	p.publish(bridgedEvent{Scope: scopeAll, Event: event}, payload)
}

func (p *Publisher) publish(evt bridgedEvent, payload interface{}) {
	raw, err := json.Marshal(payload)
	if err != nil {
		log.Printf("realtime: failed to encode bridged payload: %v", err)
		return
	}
	evt.Payload = raw

	msg, err := json.Marshal(evt)
	if err != nil {
		log.Printf("realtime: failed to encode bridged event: %v", err)
		return
	}
	if err := p.client.Publish(context.Background(), Channel, msg).Err(); err != nil {
		log.Printf("realtime: failed to publish bridged event: %v", err)
	}
}

// Relay subscribes to the bridge channel and replays events onto the local
// hub. It runs until the context is cancelled.
func Relay(ctx context.Context, client *redis.Client, hub *Hub) {
	sub := client.Subscribe(ctx, Channel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var evt bridgedEvent
			if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
				log.Printf("realtime: dropping malformed bridged event: %v", err)
				continue
			}
			switch evt.Scope {
			case scopeUser:
				hub.EmitToUser(evt.UserID, evt.Event, evt.Payload)
			case scopeRoom:
				hub.EmitToRoom(evt.Room, evt.Event, evt.Payload)
			case scopeAll:
				hub.Broadcast(evt.Event, evt.Payload)
			}
		}
	}
}
