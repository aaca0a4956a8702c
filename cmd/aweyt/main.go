package main

import (
	"context"
	"encoding/json"
	"expvar"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BIecoSRL/aweyt/internal/catalog"
	"github.com/BIecoSRL/aweyt/internal/config"
	"github.com/BIecoSRL/aweyt/internal/counter"
	"github.com/BIecoSRL/aweyt/internal/httpapi"
	"github.com/BIecoSRL/aweyt/internal/hub"
	"github.com/BIecoSRL/aweyt/internal/notify"
	"github.com/BIecoSRL/aweyt/internal/queue"
	"github.com/BIecoSRL/aweyt/internal/sequence"
	"github.com/BIecoSRL/aweyt/internal/store"
	"github.com/BIecoSRL/aweyt/internal/store/memory"
	"github.com/BIecoSRL/aweyt/internal/store/postgres"
	"github.com/BIecoSRL/aweyt/internal/telemetry"

	"github.com/google/uuid"
	"github.com/igm/sockjs-go/sockjs"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	cfg := config.Load()
	shutdownTelemetry := telemetry.Setup("aweyt")
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTelemetry(ctx)
	}()

	var (
		tickets   store.TicketStore
		allocator sequence.Allocator
		directory catalog.Directory
	)
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("db connect: %v", err)
		}
		defer pool.Close()
		tickets = postgres.NewStore(pool)
		allocator = postgres.NewAllocator(pool)
		directory = postgres.NewCatalog(pool)
	} else {
		log.Printf("DB_DSN not set, running with in-memory storage")
		tickets = memory.NewStore()
		allocator = sequence.NewMemory()
		directory = catalog.NewStatic()
	}

	notifier := notify.New()
	engine := queue.New(tickets, allocator, counter.NewTracker(), directory, notifier, queue.Options{})

	if cfg.DatabaseURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := engine.Recover(ctx); err != nil {
			log.Printf("waiting count recovery error: %v", err)
		}
		cancel()
	}

	displayHub := hub.New()
	cancelBridge := notifier.Subscribe(func(event notify.Event) {
		payload, err := json.Marshal(event)
		if err != nil {
			log.Printf("event marshal error: %v", err)
			return
		}
		displayHub.Broadcast(payload, hub.Subscription{
			CompanyID:    event.CompanyID,
			DepartmentID: event.DepartmentID,
		})
	})
	defer cancelBridge()

	handler := httpapi.NewHandler(engine)
	limiter := httpapi.NewRateLimiter(httpapi.RateLimitConfig{
		IPPerMinute:      cfg.RateLimitPerMinute,
		IPBurst:          cfg.RateLimitBurst,
		CompanyPerMinute: cfg.CompanyRateLimitPerMinute,
		CompanyBurst:     cfg.CompanyRateLimitBurst,
	})

	mux := http.NewServeMux()
	mux.Handle("/metrics", expvar.Handler())
	mux.Handle("/", handler.Routes())
	mux.Handle("/realtime/", sockjs.NewHandler("/realtime", sockjs.DefaultOptions, func(session sockjs.Session) {
		client := &hub.Client{ID: uuid.NewString(), Send: make(chan []byte, 16)}
		displayHub.Register(client)
		defer displayHub.Unregister(client)

		go func() {
			for msg := range client.Send {
				_ = session.Send(string(msg))
			}
		}()

		for {
			msg, err := session.Recv()
			if err != nil {
				return
			}
			parsed, ok := hub.ParseSubscribe([]byte(msg))
			if !ok {
				continue
			}
			if parsed.Action == "unsubscribe" {
				displayHub.UpdateSubscription(client, hub.Subscription{})
				continue
			}
			displayHub.UpdateSubscription(client, hub.Subscription{
				CompanyID:    parsed.CompanyID,
				DepartmentID: parsed.DepartmentID,
			})
		}
	}))

	otelHandler := otelhttp.NewHandler(httpapi.LoggingMiddleware(limiter.Middleware(mux)), "aweyt")
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      otelHandler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("aweyt listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownTimeout := cfg.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
