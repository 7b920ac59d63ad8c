package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mahaj/supportdesk/pkg/auth"
	"github.com/mahaj/supportdesk/pkg/model"
	"github.com/mahaj/supportdesk/pkg/support"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// inbound is the only frame a viewer sends.
type inbound struct {
	Type string `json:"type"`
}

// Client is one viewer's socket. It runs the same cursor protocol as the
// polling transport: every frame is a PollResult for the messages after the
// last one sent.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	svc  *support.Service

	conversationID int64
	role           model.Role
	identity       string
	cursor         int64
	interval       time.Duration

	wake chan struct{}
}

func (c *Client) nudge() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// readPump handles typing frames until the socket closes, then cancels the
// poll loop.
func (c *Client) readPump(ctx context.Context, cancel context.CancelFunc) {
	defer func() {
		cancel()
		c.hub.remove(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("websocket read failed", "error", err, "conversation_id", c.conversationID)
			}
			return
		}

		var frame inbound
		if err := json.Unmarshal(message, &frame); err != nil {
			continue
		}
		if frame.Type == "typing" {
			if err := c.svc.SetTyping(ctx, c.conversationID, c.role); err != nil {
				c.hub.logger.Debug("typing rejected", "error", err, "conversation_id", c.conversationID)
			}
		}
	}
}

// pollLoop polls on every tick or wake-up and writes whatever is new. It is
// the only writer on the connection. It stops once the conversation is
// resolved or closed, like any other viewer.
func (c *Client) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		ping.Stop()
		c.conn.Close()
	}()

	var last *model.PollResult
	for {
		res, err := c.svc.PollSince(ctx, c.conversationID, c.cursor, c.role)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.hub.logger.Warn("poll failed", "error", err, "conversation_id", c.conversationID)
		} else if changed(last, res) {
			if err := c.write(res); err != nil {
				return
			}
			if n := len(res.Messages); n > 0 {
				c.cursor = res.Messages[n-1].ID
			}
			last = res
			if res.Status.Settled() {
				c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(res.Status)))
				return
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-c.wake:
		case <-ping.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) write(res *model.PollResult) error {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(res)
}

// changed reports whether res is worth a frame: new messages or a different
// status or presence than the last frame.
func changed(last, res *model.PollResult) bool {
	return last == nil || len(res.Messages) > 0 || last.Status != res.Status || last.Presence != res.Presence
}

// serveWs upgrades /ws?conversation=ID&after=N. The token comes from the
// Authorization header or the token query parameter.
func serveWs(hub *Hub, svc *support.Service, issuer *auth.Issuer, interval time.Duration, w http.ResponseWriter, r *http.Request) {
	tokenString := auth.BearerToken(r)
	if tokenString == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	claims, err := issuer.Validate(tokenString)
	if err != nil {
		hub.logger.Debug("invalid token", "error", err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	q := r.URL.Query()
	conversationID, err := strconv.ParseInt(q.Get("conversation"), 10, 64)
	if err != nil {
		http.Error(w, "conversation is required", http.StatusBadRequest)
		return
	}
	var after int64
	if v := q.Get("after"); v != "" {
		if after, err = strconv.ParseInt(v, 10, 64); err != nil || after < 0 {
			http.Error(w, "after must be a non-negative integer", http.StatusBadRequest)
			return
		}
	}
	if !claims.CanAccess(conversationID) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	if _, err := svc.Conversation(r.Context(), conversationID); err != nil {
		http.Error(w, "conversation not found", http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.logger.Warn("upgrade failed", "error", err)
		return
	}

	client := &Client{
		hub:            hub,
		conn:           conn,
		svc:            svc,
		conversationID: conversationID,
		role:           claims.Role,
		identity:       claims.Identity,
		cursor:         after,
		interval:       interval,
		wake:           make(chan struct{}, 1),
	}
	hub.add(client)

	// The request context ends when this handler returns.
	ctx, cancel := context.WithCancel(context.Background())
	go client.pollLoop(ctx)
	go client.readPump(ctx, cancel)
}
