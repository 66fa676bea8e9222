package gateway

import (
	"courier/contract"
	"courier/domain/event"
	"courier/errors"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var _ contract.ConnectionSink = (*Client)(nil)

// Client is one authenticated WebSocket connection. Frames queued by Send
// are written by writePump, inbound frames are read by readPump.
type Client struct {
	id      string
	userID  string
	conn    *websocket.Conn
	log     *slog.Logger
	send    chan []byte
	limiter *rate.Limiter
	done    chan struct{}
	once    sync.Once
}

func newClient(conn *websocket.Conn, userID string, cfg Config, log *slog.Logger) *Client {
	id := uuid.NewString()
	conn.SetReadLimit(cfg.MaxMessageSize)
	return &Client{
		id:      id,
		userID:  userID,
		conn:    conn,
		log:     log.With("connection_id", id, "user_id", userID),
		send:    make(chan []byte, max(cfg.BufferSize, 1)),
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.RateBurst),
		done:    make(chan struct{}),
	}
}

func (c *Client) ID() string     { return c.id }
func (c *Client) UserID() string { return c.userID }

// Send queues evt for writing. It never blocks: a closed connection or a
// full buffer is reported to the caller, who falls back to the offline path.
func (c *Client) Send(evt event.Outbound) error {
	frame, err := evt.Encode()
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidPayload, err)
	}
	select {
	case <-c.done:
		return errors.ErrConnectionGone
	default:
	}
	select {
	case c.send <- frame:
		return nil
	default:
		c.log.Warn("Send buffer full, dropping frame", "type", evt.Type)
		return fmt.Errorf("%w: send buffer full", errors.ErrConnectionGone)
	}
}

func (c *Client) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// readPump decodes frames until the connection fails and hands each one to
// handle. Frames over the rate limit are answered with an error event.
func (c *Client) readPump(handle func(event.Inbound)) {
	defer c.close()
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn("Unexpected close", "error", err)
			}
			return
		}
		var in event.Inbound
		if err := json.Unmarshal(raw, &in); err != nil {
			_ = c.Send(event.ErrorEvent("", string(errors.CodeInvalid), "malformed frame"))
			continue
		}
		if !c.limiter.Allow() {
			_ = c.Send(event.ErrorEvent(in.Type, string(errors.CodeRateLimited), errors.ErrRateLimited.Error()))
			continue
		}
		handle(in)
	}
}

// writePump drains the send buffer and keeps the connection alive with
// pings. Each frame is its own WebSocket message.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		case frame := <-c.send:
			if err := c.write(frame); err != nil {
				c.log.Debug("Write failed", "error", err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) write(frame []byte) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, frame)
}
