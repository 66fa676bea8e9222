// Package gateway adapts WebSocket connections to the delivery core. It
// authenticates, registers presence and translates frames in both
// directions; it holds no chat state of its own.
package gateway

import (
	"context"
	"courier/auth"
	"courier/contract"
	"courier/domain"
	"courier/domain/event"
	"courier/observability"
	"log/slog"
	"net/http"
	"net/url"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"
)

type Config struct {
	BufferSize     int
	MaxMessageSize int64
	RatePerSecond  float64
	RateBurst      int
	AllowedOrigins []string
}

// ChatReader is the part of the chat service the gateway relies on.
type ChatReader interface {
	MarkChatRead(ctx context.Context, userID, chatID string) ([]string, error)
	ReadMessage(ctx context.Context, userID, chatID, messageID string) (domain.ReceiptResult, error)
}

type Gateway struct {
	log        *slog.Logger
	config     Config
	verifier   contract.TokenVerifier
	presence   contract.IPresence
	membership contract.IMembership
	sender     contract.MessageSender
	chats      ChatReader
	notifier   contract.INotifier
	stats      *observability.MonitoringManager
	validate   *validator.Validate
	upgrader   websocket.Upgrader

	mu      sync.Mutex
	clients map[string]*Client
}

func NewGateway(
	log *slog.Logger,
	config Config,
	verifier contract.TokenVerifier,
	presence contract.IPresence,
	membership contract.IMembership,
	sender contract.MessageSender,
	chats ChatReader,
	notifier contract.INotifier,
	stats *observability.MonitoringManager,
) *Gateway {
	g := &Gateway{
		log:        log,
		config:     config,
		verifier:   verifier,
		presence:   presence,
		membership: membership,
		sender:     sender,
		chats:      chats,
		notifier:   notifier,
		stats:      stats,
		validate:   validator.New(),
		clients:    make(map[string]*Client),
	}
	g.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     g.checkOrigin,
	}
	return g
}

// checkOrigin accepts non-browser clients and the configured origins.
// An empty list or "*" allows every origin.
func (g *Gateway) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(g.config.AllowedOrigins) == 0 || lo.Contains(g.config.AllowedOrigins, "*") {
		return true
	}
	if lo.Contains(g.config.AllowedOrigins, origin) {
		return true
	}
	u, err := url.Parse(origin)
	return err == nil && u.Host == r.Host
}

// ServeHTTP authenticates the request before upgrading it. A rejected
// request never touches presence.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, err := g.verifier.Verify(auth.TokenFromRequest(r))
	if err != nil {
		g.log.Debug("Connection refused", "remote_addr", r.RemoteAddr, "error", err)
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Warn("Upgrade failed", "user_id", userID, "error", err)
		return
	}

	ctx := context.WithoutCancel(r.Context())
	client := newClient(conn, userID, g.config, g.log)
	g.track(client)
	g.presence.Register(ctx, client)
	g.stats.ConnectionOpened()
	client.log.Info("Connection opened")

	_ = client.Send(event.OnlineUsersEvent(g.presence.ListOnline()))

	go client.writePump()
	client.readPump(func(in event.Inbound) {
		g.dispatch(ctx, client, in)
	})

	g.presence.Unregister(ctx, client.ID())
	g.untrack(client)
	g.stats.ConnectionClosed()
	client.log.Info("Connection closed")
}

func (g *Gateway) track(c *Client) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.clients[c.ID()] = c
}

func (g *Gateway) untrack(c *Client) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.clients, c.ID())
}

// Shutdown closes every open connection. Hijacked connections are not
// closed by http.Server.Shutdown.
func (g *Gateway) Shutdown() {
	g.mu.Lock()
	clients := lo.Values(g.clients)
	g.mu.Unlock()
	for _, c := range clients {
		c.close()
	}
}
