package internal

import (
	"courier/api"
	"courier/auth"
	"courier/contract"
	"courier/domain"
	"courier/gateway"
	"courier/observability"
	"courier/repositories"
	"courier/runtime"
	"courier/runtime/workers"
	"courier/services"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
	"github.com/gin-gonic/gin"
)

// App holds the wired server. Nothing runs until its workers are handed
// to a supervisor and its router to an HTTP server.
type App struct {
	log    *slog.Logger
	config Config

	Verifier      *auth.Verifier
	Stats         *observability.MonitoringManager
	Presence      *runtime.Presence
	Dispatcher    *runtime.Dispatcher
	Chats         *repositories.ChatRepository
	Membership    *services.Membership
	Store         *services.MessageStore
	Receipts      *services.ReceiptTracker
	Publisher     *services.StatusPublisher
	Notifications *services.NotificationService
	Engine        *services.DeliveryEngine
	ChatService   *services.ChatService
	Gateway       *gateway.Gateway

	activity chan domain.ActivityUpdate
}

func NewApp(log *slog.Logger, config Config, db *badger.DB) (*App, error) {
	policy := services.DefaultRetryPolicy()
	policy.MaxRetries = config.StoreRetryMax

	a := &App{
		log:      log,
		config:   config,
		Verifier: auth.NewVerifier(config.JWTSecret),
		Stats:    observability.NewMonitoringManager(log),
		activity: make(chan domain.ActivityUpdate, config.ActivityBufferSize),
	}
	a.Chats = repositories.NewChatRepository(db, log)
	a.Presence = runtime.NewPresence(log, repositories.NewUserRepository(db))
	a.Dispatcher = runtime.NewDispatcher(log, config.NumberOfShards, config.ShardBufferSize)
	a.Membership = services.NewMembership(log, a.Chats)

	store, err := services.NewMessageStore(log,
		repositories.NewMessageRepository(db, log, config.HistoryPageLimit),
		a.Membership, policy, config.MaxMessageSize)
	if err != nil {
		return nil, err
	}
	a.Store = store
	a.Receipts = services.NewReceiptTracker(log, repositories.NewReceiptRepository(db, log), a.Store, a.Membership, policy)
	a.Publisher = services.NewStatusPublisher(log, a.Receipts, a.Store, a.Presence)

	var pusher contract.WebPusher
	if config.WebPushEnabled() {
		pusher = services.NewVAPIDPusher(log, config.VAPIDSubscriber, config.VAPIDPublicKey, config.VAPIDPrivateKey)
	}
	a.Notifications = services.NewNotificationService(log,
		repositories.NewNotificationRepository(db, log), repositories.NewPushRepository(db),
		a.Presence, a.Receipts, a.Publisher, pusher, policy)

	a.Engine = services.NewDeliveryEngine(log, a.Store, a.Membership, a.Presence, a.Receipts,
		a.Notifications, a.Publisher, a.Chats, a.activity, a.Stats)
	a.ChatService = services.NewChatService(log, a.Chats, a.Membership, a.Store, a.Receipts,
		a.Publisher, a.Notifications, a.Dispatcher)

	a.Gateway = gateway.NewGateway(log, gateway.Config{
		BufferSize:     config.ConnectionBufferSize,
		MaxMessageSize: int64(config.MaxMessageSize)*2 + 1024,
		RatePerSecond:  config.RateLimitPerSecond,
		RateBurst:      config.RateLimitBurst,
		AllowedOrigins: config.Origins(),
	}, a.Verifier, a.Presence, a.Membership, a.Dispatcher, a.ChatService, a.Notifications, a.Stats)
	return a, nil
}

// Router serves the REST API and the WebSocket endpoint.
func (a *App) Router() *gin.Engine {
	gin.SetMode(a.config.GinMode)
	handler := api.NewHandler(a.log, a.ChatService, a.Receipts, a.Notifications, a.Presence, a.Stats)
	return api.NewRouter(handler, a.Verifier, a.Gateway, a.config.Origins())
}

// Workers returns the delivery shards and the background jobs.
func (a *App) Workers() []contract.Worker {
	res := a.Dispatcher.Workers(a.Engine)
	return append(res,
		workers.NewActivityWorker(a.log, a.activity, a.Chats),
		workers.NewSweeperWorker(a.log, a.Notifications, a.config.SweepInterval, a.config.NotificationRetention),
		workers.NewMonitoringWorker(a.log, a.Stats, a.config.MetricInterval),
	)
}

// Close drops open connections and waits for pending web pushes.
func (a *App) Close() {
	a.Gateway.Shutdown()
	a.Notifications.Wait()
	a.Store.Close()
}
