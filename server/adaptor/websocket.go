package adaptor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/ponyo877/livedeck/server/domain"
	"github.com/tidwall/gjson"
)

const (
	eventSubscriptionSucceeded = "subscription_succeeded"
	eventSubscriptionError     = "subscription_error"
	eventPong                  = "pong"

	// MaxSubscriptionsPerConnection bounds the channels one socket may join.
	MaxSubscriptionsPerConnection = 32

	maxFrameBytes = 64 << 10
	writeWait     = 10 * time.Second
	deliverBuffer = 64
)

type frame struct {
	Event   string          `json:"event"`
	Channel string          `json:"channel,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (a *Adaptor) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(a.opts.AllowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			return origin == "" || slices.Contains(a.opts.AllowedOrigins, origin)
		},
	}
}

// subscribe authorizes identity for channel and attaches deliver to it.
func (a *Adaptor) subscribe(ctx context.Context, connID string, identity *domain.Identity, channel, remote string, deliver chan<- domain.Message) error {
	if !a.uc.Authorizer.Authorize(ctx, identity, channel) {
		return fmt.Errorf("channel %s: %w", channel, domain.ErrUnauthorized)
	}
	return a.hub.Subscribe(domain.NewSubscription(connID, channel, remote), deliver)
}

type wsConnection struct {
	id       string
	conn     *websocket.Conn
	identity *domain.Identity
	remote   string

	send    chan frame
	deliver chan domain.Message
	subs    map[string]domain.Subscription

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	logger    *slog.Logger
}

func (a *Adaptor) serveWS(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	conn, err := a.upgrader().Upgrade(w, r, nil)
	if err != nil {
		a.logger.Warn("WebSocket upgrade failed", slog.Any("error", err))
		return
	}

	reqMeta := metadataFrom(r.Context())
	id := uuid.New().String()
	ctx, cancel := context.WithCancel(a.ctx)
	c := &wsConnection{
		id:       id,
		conn:     conn,
		identity: reqMeta.Identity,
		remote:   reqMeta.IP,
		send:     make(chan frame, 16),
		deliver:  make(chan domain.Message, deliverBuffer),
		subs:     make(map[string]domain.Subscription),
		ctx:      ctx,
		cancel:   cancel,
		logger:   a.logger.With(slog.String("connID", id)),
	}
	c.logger.Debug("Connection established", slog.String("ip", c.remote))

	go c.writePump(a.opts.ReadTimeout)
	c.readPump(a)
}

func (c *wsConnection) readPump(a *Adaptor) {
	defer c.close(a)

	c.conn.SetReadLimit(maxFrameBytes)
	c.conn.SetReadDeadline(time.Now().Add(a.opts.ReadTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(a.opts.ReadTimeout))
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Info("Connection read failed", slog.Any("error", err))
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(a.opts.ReadTimeout))
		c.handle(a, parseFrame(msg))
	}
}

func parseFrame(msg []byte) domain.ClientRequest {
	if !gjson.ValidBytes(msg) {
		return domain.ClientRequest{}
	}
	parsed := gjson.ParseBytes(msg)
	return domain.ClientRequest{
		Type:    domain.ParseClientRequestType(parsed.Get("event").String()),
		Channel: parsed.Get("channel").String(),
	}
}

func (c *wsConnection) handle(a *Adaptor, req domain.ClientRequest) {
	if !req.IsValid() {
		c.logger.Debug("Ignoring invalid frame", slog.String("request", req.String()))
		return
	}

	switch req.Type {
	case domain.RequestSubscribe:
		if _, exists := c.subs[req.Channel]; exists {
			c.push(frame{Event: eventSubscriptionSucceeded, Channel: req.Channel})
			return
		}
		if len(c.subs) >= MaxSubscriptionsPerConnection {
			c.logger.Warn("Subscription limit reached", slog.String("channel", req.Channel), slog.Int("limit", MaxSubscriptionsPerConnection))
			c.push(frame{Event: eventSubscriptionError, Channel: req.Channel})
			return
		}
		if err := a.subscribe(c.ctx, c.id, c.identity, req.Channel, c.remote, c.deliver); err != nil {
			c.logger.Debug("Subscription rejected", slog.String("channel", req.Channel), slog.Any("error", err))
			c.push(frame{Event: eventSubscriptionError, Channel: req.Channel})
			return
		}
		c.subs[req.Channel] = domain.NewSubscription(c.id, req.Channel, c.remote)
		c.push(frame{Event: eventSubscriptionSucceeded, Channel: req.Channel})
	case domain.RequestUnsubscribe:
		if sub, exists := c.subs[req.Channel]; exists {
			a.hub.Unsubscribe(sub.ID)
			delete(c.subs, req.Channel)
		}
	case domain.RequestPing:
		c.push(frame{Event: eventPong})
	}
}

func (c *wsConnection) push(f frame) {
	select {
	case c.send <- f:
	case <-c.ctx.Done():
	}
}

// writePump is the only writer on the socket.
func (c *wsConnection) writePump(readTimeout time.Duration) {
	ticker := time.NewTicker(readTimeout * 9 / 10)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		var f frame
		select {
		case f = <-c.send:
		case msg := <-c.deliver:
			f = frame{Event: msg.Event, Channel: msg.Channel, Data: msg.Data}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.cancel()
				return
			}
			continue
		case <-c.ctx.Done():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}

		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteJSON(f); err != nil {
			c.logger.Debug("Connection write failed", slog.Any("error", err))
			c.cancel()
			return
		}
	}
}

func (c *wsConnection) close(a *Adaptor) {
	c.closeOnce.Do(func() {
		for _, sub := range c.subs {
			a.hub.Unsubscribe(sub.ID)
		}
		c.cancel()
		c.logger.Debug("Connection closed", slog.Int("subscriptions", len(c.subs)))
	})
}
