// ABOUTME: Gateway orchestrator that wires the store, messaging service and HTTP server
// ABOUTME: Manages listeners (TCP or tailnet), the optional Redis relay, health endpoints and shutdown

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"tailscale.com/tsnet"

	"github.com/2389/huddle/internal/auth"
	"github.com/2389/huddle/internal/config"
	"github.com/2389/huddle/internal/conversation"
	"github.com/2389/huddle/internal/dedupe"
	"github.com/2389/huddle/internal/store"
)

// Gateway serves the huddle HTTP API and realtime channel.
type Gateway struct {
	config       *config.Config
	store        store.Store
	credentials  *auth.Credentials
	conversation *conversation.Service
	logger       *slog.Logger

	// verifier is nil when no jwt_secret is configured
	verifier *auth.JWTVerifier

	// broadcaster delivers to this instance's subscribers; publisher is either
	// the broadcaster itself or the Redis relay in front of it
	broadcaster *conversation.Broadcaster
	publisher   conversation.Publisher
	relay       *conversation.RedisRelay
	redisClient *redis.Client

	// dedupe drops realtime sends resent with the same clientMessageId
	dedupe *dedupe.Cache

	validate *validator.Validate
	upgrader websocket.Upgrader
	router   http.Handler

	// connCtx is the parent of every realtime connection; cancelled on shutdown
	connCtx     context.Context
	cancelConns context.CancelFunc
	conns       sync.WaitGroup

	httpServer  *http.Server
	tsnetServer *tsnet.Server

	// serverID identifies this gateway instance in logs
	serverID string
}

// initStore creates the SQLite store named by the config.
func initStore(cfg *config.Config) (store.Store, error) {
	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}
	return s, nil
}

// New creates a Gateway backed by the configured SQLite database and, when
// realtime.redis_url is set, a Redis relay.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	s, err := initStore(cfg)
	if err != nil {
		return nil, err
	}

	var redisClient *redis.Client
	if cfg.Realtime.RedisURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		redisClient, err = conversation.NewRedisClient(ctx, cfg.Realtime.RedisURL)
		cancel()
		if err != nil {
			_ = s.Close()
			return nil, err
		}
	}

	gw, err := newGateway(cfg, s, redisClient, logger)
	if err != nil {
		_ = s.Close()
		if redisClient != nil {
			_ = redisClient.Close()
		}
		return nil, err
	}
	return gw, nil
}

// newGateway wires a Gateway around an existing store. redisClient may be nil.
func newGateway(cfg *config.Config, s store.Store, redisClient *redis.Client, logger *slog.Logger) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}

	credentials := auth.NewCredentials(s, cfg.Auth.BcryptCost, logger)
	broadcaster := conversation.NewBroadcaster(cfg.Realtime.SubscriberBuffer, logger)

	connCtx, cancelConns := context.WithCancel(context.Background())

	gw := &Gateway{
		config:       cfg,
		store:        s,
		credentials:  credentials,
		conversation: conversation.New(s, credentials, logger),
		logger:       logger.With("component", "gateway"),
		broadcaster:  broadcaster,
		publisher:    broadcaster,
		redisClient:  redisClient,
		dedupe:       dedupe.New(cfg.Realtime.DedupeTTL, cfg.Realtime.DedupeMaxEntries),
		validate:     validator.New(validator.WithRequiredStructEnabled()),
		connCtx:      connCtx,
		cancelConns:  cancelConns,
		serverID:     generateServerID(),
	}

	if cfg.Auth.JWTSecret != "" {
		verifier, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
		if err != nil {
			cancelConns()
			gw.dedupe.Close()
			return nil, fmt.Errorf("creating JWT verifier: %w", err)
		}
		gw.verifier = verifier
		gw.logger.Info("token auth enabled for history and realtime endpoints")
	} else {
		gw.logger.Warn("auth disabled - no jwt_secret configured")
	}

	if redisClient != nil {
		gw.relay = conversation.NewRedisRelay(redisClient, cfg.Realtime.RedisPrefix, broadcaster, logger)
		gw.publisher = gw.relay
		gw.logger.Info("redis relay enabled", "prefix", cfg.Realtime.RedisPrefix)
	}

	gw.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     gw.checkOrigin,
	}

	gw.router = gw.routes()
	gw.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           gw.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return gw, nil
}

// routes builds the HTTP router. History, transcript and realtime endpoints
// require a bearer token when a jwt_secret is configured.
func (g *Gateway) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", g.handleHealth)
	r.Get("/health/ready", g.handleReady)

	r.Post("/api/auth/login", g.handleLogin)
	r.Post("/api/auth/register", g.handleRegister)

	r.Group(func(r chi.Router) {
		if g.verifier != nil {
			r.Use(auth.HTTPAuthMiddleware(g.credentials, g.verifier))
		}
		r.Get("/api/conversations/{id}/messages", g.handleConversationMessages)
		r.Get("/api/conversations/{id}/transcript", g.handleTranscript)
		r.Get("/ws", g.handleWebSocket)
	})

	return r
}

// Handler returns the gateway's HTTP handler.
func (g *Gateway) Handler() http.Handler {
	return g.router
}

// setupTCPListener listens on server.http_addr.
func (g *Gateway) setupTCPListener() (net.Listener, error) {
	g.logger.Info("starting gateway", "http_addr", g.config.Server.HTTPAddr, "server_id", g.serverID)

	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return nil, fmt.Errorf("listening on HTTP address: %w", err)
	}
	return ln, nil
}

// setupListener creates the HTTP listener on the tailnet or plain TCP.
func (g *Gateway) setupListener(ctx context.Context) (net.Listener, error) {
	if g.config.Tailscale.Enabled {
		if g.config.Server.HTTPAddr != "" {
			g.logger.Warn("server.http_addr is ignored when tailscale is enabled",
				"http_addr", g.config.Server.HTTPAddr)
		}
		return g.setupTailscaleListener(ctx)
	}
	return g.setupTCPListener()
}

// startServers launches the HTTP server and the relay consumer.
func (g *Gateway) startServers(ctx context.Context, ln net.Listener) chan error {
	errCh := make(chan error, 2)

	go func() {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := g.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	if g.relay != nil {
		go func() {
			if err := g.relay.Run(ctx); err != nil {
				errCh <- fmt.Errorf("redis relay: %w", err)
			}
		}()
	}

	return errCh
}

// waitForShutdownSignal blocks until the context is cancelled or a server fails.
func (g *Gateway) waitForShutdownSignal(ctx context.Context, errCh chan error) error {
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
		return nil
	case err := <-errCh:
		g.logger.Error("server error", "error", err)
		return err
	}
}

// Run starts serving and blocks until ctx is cancelled or a server fails.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := g.setupListener(ctx)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := g.startServers(runCtx, ln)
	serverErr := g.waitForShutdownSignal(runCtx, errCh)
	cancel()

	shutdownErr := g.gracefulShutdown()

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.Shutdown(ctx)
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// waitForConns waits for realtime connections to finish or ctx to expire.
func (g *Gateway) waitForConns(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		g.conns.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		g.logger.Warn("realtime connections still open at shutdown deadline")
	}
}

// Shutdown gracefully stops the server, closes realtime connections and
// releases resources.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", g.httpServer.Shutdown(ctx))

	// hijacked websocket connections are not covered by http.Server.Shutdown
	g.cancelConns()
	g.waitForConns(ctx)

	if g.tsnetServer != nil {
		errs = appendCloseError(errs, "tailscale shutdown", g.tsnetServer.Close())
	}
	if g.redisClient != nil {
		errs = appendCloseError(errs, "redis close", g.redisClient.Close())
	}
	errs = appendCloseError(errs, "store close", g.store.Close())

	g.dedupe.Close()
	g.broadcaster.Close()

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}
	return nil
}

// handleHealth returns 200 OK if the server is alive.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReady returns 200 OK if the store answers a ping.
func (g *Gateway) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := g.store.Ping(ctx); err != nil {
		g.logger.Warn("readiness check failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("store unavailable"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// generateServerID creates a unique identifier for this gateway instance.
func generateServerID() string {
	return "huddle-" + uuid.New().String()[:8]
}
