package broadcast

import (
	"context"
	"encoding/json"
	"log"

	"github.com/redis/go-redis/v9"
)

// Relay mirrors signals between instances through a Redis channel. Local
// signals are published, remote ones are delivered into the hub.
type Relay struct {
	hub     *Hub
	rdb     *redis.Client
	channel string
}

func NewRelay(hub *Hub, rdb *redis.Client, channel string) *Relay {
	return &Relay{hub: hub, rdb: rdb, channel: channel}
}

// Run blocks until ctx is done.
func (r *Relay) Run(ctx context.Context) {
	pubsub := r.rdb.Subscribe(ctx, r.channel)
	defer pubsub.Close()

	local, unsubscribe := r.hub.Subscribe()
	defer unsubscribe()

	remote := pubsub.Channel()
	log.Printf("Broadcast relay listening on redis channel %q", r.channel)
	for {
		select {
		case <-ctx.Done():
			log.Println("Broadcast relay shutting down.")
			return
		case sig, ok := <-local:
			if !ok {
				return
			}
			if sig.Origin != r.hub.Origin() {
				continue
			}
			if err := r.publish(ctx, sig); err != nil {
				log.Printf("Error relaying %s signal: %v", sig.Kind, err)
			}
		case msg, ok := <-remote:
			if !ok {
				return
			}
			var sig Signal
			if err := json.Unmarshal([]byte(msg.Payload), &sig); err != nil {
				log.Printf("Error decoding relayed signal: %v", err)
				continue
			}
			if sig.Origin == r.hub.Origin() {
				continue
			}
			r.hub.Deliver(sig)
		}
	}
}

func (r *Relay) publish(ctx context.Context, sig Signal) error {
	payload, err := json.Marshal(sig)
	if err != nil {
		return err
	}
	return r.rdb.Publish(ctx, r.channel, payload).Err()
}
