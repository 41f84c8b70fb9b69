// Package feed broadcasts batch-auction outcomes to connected websocket
// subscribers, the server-side counterpart of the JSON-over-websocket
// notification style guidebee-SolRoute's subscription client speaks.
package feed

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// BatchNotification is the message shape pushed to every subscriber after
// a batch auction settles.
type BatchNotification struct {
	Pool          string `json:"pool"`
	BatchID       string `json:"batch_id"`
	ClearingPrice string `json:"clearing_price"`
	OrdersFilled  int    `json:"orders_filled"`
	NetAmount0    string `json:"net_amount0"`
	NetAmount1    string `json:"net_amount1"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Broadcaster fans batch notifications out to every open connection. A
// subscriber that falls behind its buffer is dropped rather than allowed
// to block the broadcast loop.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[*subscriber]struct{}
}

type subscriber struct {
	conn *websocket.Conn
	out  chan BatchNotification
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subscribers: map[*subscriber]struct{}{}}
}

// ServeHTTP upgrades the request to a websocket and registers the
// connection as a subscriber until it disconnects.
func (b *Broadcaster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.WithError(err).Warn("feed: websocket upgrade failed")
		return
	}

	sub := &subscriber{conn: conn, out: make(chan BatchNotification, 32)}
	b.mu.Lock()
	b.subscribers[sub] = struct{}{}
	b.mu.Unlock()

	go b.writeLoop(sub)
}

func (b *Broadcaster) writeLoop(sub *subscriber) {
	defer func() {
		b.mu.Lock()
		delete(b.subscribers, sub)
		b.mu.Unlock()
		sub.conn.Close()
	}()

	for notification := range sub.out {
		payload, err := json.Marshal(notification)
		if err != nil {
			logrus.WithError(err).Warn("feed: marshal notification")
			continue
		}
		if err := sub.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}

// Publish sends a notification to every currently connected subscriber,
// dropping any subscriber whose outbound buffer is full instead of
// blocking the caller (the batch auction's settlement path).
func (b *Broadcaster) Publish(n BatchNotification) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if logrus.GetLevel() >= logrus.DebugLevel {
		logrus.Debugf("feed: publishing batch %s to %d subscribers", n.BatchID, len(b.subscribers))
	}

	for sub := range b.subscribers {
		select {
		case sub.out <- n:
		default:
			logrus.Warn("feed: dropping slow subscriber")
			delete(b.subscribers, sub)
			close(sub.out)
		}
	}
}

// Close tears down every open connection.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subscribers {
		close(sub.out)
		delete(b.subscribers, sub)
	}
}
