package federation

import "sync"

// Events surfaced to the hosting application.
const (
	EventUserOnline    = "user_online"
	EventUserOffline   = "user_offline"
	EventCreateUser    = "create_user"
	EventDeleteUser    = "delete_user"
	EventChannelCreate = "channel_create"
	EventChannelDelete = "channel_delete"
	EventMessage       = "message"
	EventMessageDelete = "message_delete"
	EventPeerOnline    = "peer_online"
	EventPairRequest   = "pair_request"
	EventPairAccept    = "pair_accept"
	EventPairReject    = "pair_reject"
)

type EventHandler func(payload interface{})

// Subscription is the opaque handle returned by On and consumed by Off.
type Subscription struct {
	event   string
	handler EventHandler
}

// emitter delivers events synchronously, in subscription order. Handlers
// run on the goroutine that emitted, so they must not block on the
// server's own operations.
type emitter struct {
	mu       sync.Mutex
	handlers map[string][]*Subscription
}

func newEmitter() *emitter {
	return &emitter{handlers: make(map[string][]*Subscription)}
}

func (e *emitter) On(event string, handler EventHandler) *Subscription {
	sub := &Subscription{event: event, handler: handler}
	e.mu.Lock()
	e.handlers[event] = append(e.handlers[event], sub)
	e.mu.Unlock()
	return sub
}

func (e *emitter) Off(sub *Subscription) {
	if sub == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	subs := e.handlers[sub.event]
	for i, s := range subs {
		if s == sub {
			e.handlers[sub.event] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

func (e *emitter) Emit(event string, payload interface{}) {
	e.mu.Lock()
	subs := make([]*Subscription, len(e.handlers[event]))
	copy(subs, e.handlers[event])
	e.mu.Unlock()

	for _, s := range subs {
		s.handler(payload)
	}
}
