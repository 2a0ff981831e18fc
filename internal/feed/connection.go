package feed

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"
)

const (
	sendChSize   = 256
	maxReconnect = 10
	maxBackoff   = 30 * time.Second
	writeWait    = 10 * time.Second
)

// connection manages the feed WebSocket with a single write goroutine.
// Incoming envelopes are handed to onMessage; active subscriptions are
// cached and replayed after a reconnect.
type connection struct {
	mu     sync.Mutex
	conn   *ws.Conn
	sendCh chan []byte
	done   chan struct{} // closed on shutdown
	closed bool

	wsURL  string
	secret string

	// Cached subscribe messages keyed by topic, replayed on reconnect.
	subscriptions map[string][]byte

	onMessage func(Envelope)
	logger    *slog.Logger
}

func newConnection(logger *slog.Logger, onMessage func(Envelope)) *connection {
	return &connection{
		sendCh:        make(chan []byte, sendChSize),
		done:          make(chan struct{}),
		subscriptions: make(map[string][]byte),
		onMessage:     onMessage,
		logger:        logger,
	}
}

// dial connects to the feed server and starts read/write loops.
func (c *connection) dial(rawURL, secret string) error {
	c.wsURL = rawURL
	c.secret = secret

	conn, err := c.dialOnce()
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	go c.writeLoop()
	go c.readLoop()

	return nil
}

// dialOnce performs a single WebSocket dial with the secret query param.
func (c *connection) dialOnce() (*ws.Conn, error) {
	u, err := url.Parse(c.wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid feed URL: %w", err)
	}
	if c.secret != "" {
		q := u.Query()
		q.Set("secret", c.secret)
		u.RawQuery = q.Encode()
	}

	conn, _, err := ws.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("feed dial failed: %w", err)
	}
	return conn, nil
}

// subscribe sends a subscribe message for topic and caches it for
// reconnect replay.
func (c *connection) subscribe(topic string) error {
	data, err := marshalEnvelope(TypeSubscribe, SubscribePayload{Topic: topic})
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.subscriptions[topic] = data
	c.mu.Unlock()

	c.send(data)
	return nil
}

// unsubscribe sends an unsubscribe message and drops the cached entry.
func (c *connection) unsubscribe(topic string) error {
	data, err := marshalEnvelope(TypeUnsubscribe, SubscribePayload{Topic: topic})
	if err != nil {
		return err
	}

	c.mu.Lock()
	delete(c.subscriptions, topic)
	c.mu.Unlock()

	c.send(data)
	return nil
}

// writeLoop drains sendCh and writes messages to the WebSocket.
// Only one writeLoop runs at a time; it returns on error or shutdown.
func (c *connection) writeLoop() {
	for {
		select {
		case <-c.done:
			return
		case data := <-c.sendCh:
			c.mu.Lock()
			conn := c.conn
			c.mu.Unlock()

			if conn == nil {
				continue
			}

			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Warn("Feed SetWriteDeadline error", "error", err)
				go c.reconnect()
				return
			}
			if err := conn.WriteMessage(ws.TextMessage, data); err != nil {
				c.logger.Warn("Feed write error", "error", err)
				go c.reconnect()
				return
			}
		}
	}
}

// readLoop reads envelopes from the server and routes them to onMessage.
func (c *connection) readLoop() {
	for {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()

		if conn == nil {
			return
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return
			default:
			}
			c.logger.Warn("Feed read error", "error", err)
			go c.reconnect()
			return
		}

		var env Envelope
		if err := json.Unmarshal(message, &env); err != nil {
			c.logger.Debug("Malformed feed message", "raw", string(message))
			continue
		}

		if c.onMessage != nil {
			c.onMessage(env)
		}
	}
}

// reconnect attempts to re-establish the WebSocket connection with
// exponential backoff. On success it replays the cached subscribe
// messages and restarts the read/write loops.
func (c *connection) reconnect() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.mu.Unlock()

	backoff := time.Second
	for attempt := 1; attempt <= maxReconnect; attempt++ {
		select {
		case <-c.done:
			return
		default:
		}

		c.logger.Info("Reconnecting to feed", "attempt", attempt, "backoff", backoff)
		time.Sleep(backoff)

		conn, err := c.dialOnce()
		if err != nil {
			c.logger.Warn("Feed reconnect dial failed", "attempt", attempt, "error", err)
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}

		c.mu.Lock()
		c.conn = conn
		cached := make([][]byte, 0, len(c.subscriptions))
		for _, data := range c.subscriptions {
			cached = append(cached, data)
		}
		c.mu.Unlock()

		// Resubscribe so the server resumes streaming our topics.
		replayed := true
		for _, data := range cached {
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Warn("Failed to set deadline for subscribe replay", "error", err)
				replayed = false
				break
			}
			if err := conn.WriteMessage(ws.TextMessage, data); err != nil {
				c.logger.Warn("Failed to replay subscribe after reconnect", "error", err)
				replayed = false
				break
			}
		}
		if !replayed {
			_ = conn.Close()
			continue
		}

		c.logger.Info("Feed reconnected", "attempt", attempt, "topics", len(cached))
		go c.writeLoop()
		go c.readLoop()
		return
	}

	c.logger.Error("Feed reconnect failed after max attempts", "maxAttempts", maxReconnect)
}

// send pushes data to the write loop. Non-blocking; drops if channel full.
func (c *connection) send(data []byte) {
	select {
	case c.sendCh <- data:
	default:
		c.logger.Warn("Feed send channel full, dropping message")
	}
}

// close shuts the connection down. Safe to call once.
func (c *connection) close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	close(c.done)
	if conn != nil {
		return conn.Close()
	}
	return nil
}
