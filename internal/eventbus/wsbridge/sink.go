// Package wsbridge is the optional external sink for the event bus: it
// fans domain events out to WebSocket subscribers through a bounded
// in-process queue, so a slow or disconnected client never blocks the
// hot path (§4.4 "Backpressure").
package wsbridge

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// envelope is the wire shape pushed to every connected client.
type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Sink implements eventbus.Sink over a bounded watermill gochannel topic.
// Publish enqueues; a background loop drains the topic and fans each
// message out to the currently connected WebSocket clients, matching the
// "bounded out-of-process-style queue" the event bus contract allows
// (§4.4). Sink itself never drops a message: Send hands every event to
// the gochannel topic, and a client whose write fails is logged and
// skipped for that message only.
type Sink struct {
	log   *zap.Logger
	pub   *gochannel.GoChannel
	topic string

	mu      sync.RWMutex
	clients map[*websocket.Conn]struct{}
}

const topic = "challenge-events"

// New builds a Sink with queue capacity cap. A larger cap tolerates
// longer client stalls at the cost of more buffered memory.
func New(cap int, log *zap.Logger) *Sink {
	if log == nil {
		log = zap.NewNop()
	}
	gc := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: int64(cap),
		Persistent:          false,
	}, watermill.NewStdLogger(false, false))

	s := &Sink{
		log:     log,
		pub:     gc,
		topic:   topic,
		clients: make(map[*websocket.Conn]struct{}),
	}

	messages, err := gc.Subscribe(context.Background(), topic)
	if err != nil {
		log.Error("wsbridge subscribe failed", zap.Error(err))
		return s
	}
	go s.fanOut(messages)

	return s
}

// Send implements eventbus.Sink. It never blocks the caller for longer
// than it takes to marshal and enqueue the message.
func (s *Sink) Send(ctx context.Context, eventType string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	env, err := json.Marshal(envelope{Type: eventType, Payload: body})
	if err != nil {
		return err
	}

	msg := message.NewMessage(watermill.NewUUID(), env)
	return s.pub.Publish(s.topic, msg)
}

func (s *Sink) fanOut(messages <-chan *message.Message) {
	for msg := range messages {
		s.broadcast(msg.Payload)
		msg.Ack()
	}
}

func (s *Sink) broadcast(body []byte) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for conn := range s.clients {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, body); err != nil {
			s.log.Warn("wsbridge client write failed", zap.Error(err))
		}
	}
}

// Register adds conn to the set of clients that receive every future
// broadcast. Callers own the conn's upgrade handshake; this package only
// owns fan-out.
func (s *Sink) Register(conn *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[conn] = struct{}{}
}

// Unregister removes conn from the broadcast set.
func (s *Sink) Unregister(conn *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.clients, conn)
}

// Close shuts down the underlying queue.
func (s *Sink) Close() error {
	return s.pub.Close()
}
