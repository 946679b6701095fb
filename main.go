package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/linksort/linksort-chat/internal/api"
	"github.com/linksort/linksort-chat/internal/cache"
	"github.com/linksort/linksort-chat/internal/chat"
	"github.com/linksort/linksort-chat/internal/chat/conversations"
	"github.com/linksort/linksort-chat/internal/chat/invalidation"
	"github.com/linksort/linksort-chat/internal/chat/model"
	"github.com/linksort/linksort-chat/internal/chat/observers"
	"github.com/linksort/linksort-chat/internal/core"
	logx "github.com/linksort/linksort-chat/pkg/logger"
	pkgredis "github.com/linksort/linksort-chat/pkg/redis"
)

// AppConfig defines all configurable parameters of the chat client,
// sourced from environment variables (loaded from .env for local runs).
type AppConfig struct {
	Env string `envconfig:"APP_ENV" default:"development"`

	// Infrastructure
	Redis       pkgredis.Config
	MetricsAddr string `envconfig:"METRICS_ADDR"`

	// Linksort
	API     model.APIConfig
	Cache   model.CacheConfig
	Session model.SessionConfig
}

func main() {
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: Could not load .env file: %v\n", err)
	}

	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to process environment config: %v\n", err)
		os.Exit(1)
	}
	logx.Init(logx.LoggerOpts{Environment: core.ParseEnvironment(cfg.Env)})

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	if err := run(ctx, stop, cfg); err != nil {
		logx.Fatal().Err(err).Msg("linksort-chat exited")
	}
}

func run(ctx context.Context, stop context.CancelFunc, cfg AppConfig) error {
	timeout, err := time.ParseDuration(cfg.API.Timeout)
	if err != nil {
		return fmt.Errorf("invalid LINKSORT_TIMEOUT %q: %w", cfg.API.Timeout, err)
	}
	ttl, err := time.ParseDuration(cfg.Cache.TTL)
	if err != nil {
		return fmt.Errorf("invalid CACHE_TTL %q: %w", cfg.Cache.TTL, err)
	}

	// ====================================================
	// Cache store: Redis when configured, in-process otherwise
	var store cache.Store = cache.NewMemoryStore()
	if cfg.Redis.Enabled() {
		rdb, err := cfg.Redis.New(ctx)
		if err != nil {
			return fmt.Errorf("initialise redis client: %w", err)
		}
		defer rdb.Close()
		store = cache.NewRedisStore(rdb, cfg.Cache.Namespace, ttl)
		logx.Info().Str("namespace", cfg.Cache.Namespace).Msg("using redis query cache")
	}
	qc := cache.New(store)
	unsubscribe := qc.Subscribe(func(p cache.Partition) {
		logx.Debug().Str("partition", p.String()).Msg("cache partition invalidated")
	})
	defer unsubscribe()

	// ====================================================
	// Linksort API client
	tokens := api.NewTokenStore(cfg.API.CSRFToken)
	client := api.NewClient(api.Config{
		BaseURL:       cfg.API.URL,
		Timeout:       timeout,
		SessionCookie: cfg.API.SessionCookie,
	}, tokens)
	if tokens.Token() == "" {
		if err := client.LoadToken(ctx, cfg.Session.PageRoute); err != nil {
			return fmt.Errorf("load csrf token: %w", err)
		}
	}

	// ====================================================
	// Observers
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	observer := observers.Multi(observers.NewLogObserver(), observers.NewMetrics(reg))
	if cfg.MetricsAddr != "" {
		srv := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logx.Error().Err(err).Str("addr", cfg.MetricsAddr).Msg("metrics server stopped")
			}
		}()
		defer srv.Close()
	}

	manager := conversations.NewManager(client, qc, cfg.Session)
	out := newPrinter(os.Stdout)
	session := chat.NewSession(ctx, chat.Deps{
		API:           client,
		Conversations: manager,
		Cache:         qc,
		Policy:        invalidation.NewPolicy(nil),
		Observer:      observer,
	}, chat.WithUpdates(out.Update), chat.WithPageContext(func() model.PageContext {
		return model.PageContext{Route: cfg.Session.PageRoute, Query: map[string]any{}}
	}))
	defer session.Close()

	// Ctrl-C aborts the active turn, or quits when idle.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	defer signal.Stop(sigs)
	go func() {
		for {
			select {
			case <-sigs:
				if session.Status().Active() {
					session.Abort()
					continue
				}
				stop()
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	repl := &repl{session: session, manager: manager, out: out}
	fmt.Println("Linksort chat. Commands: /new /history /list /quit")
	for {
		fmt.Print("> ")
		select {
		case <-ctx.Done():
			fmt.Println()
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := repl.handle(ctx, strings.TrimSpace(line)); quit {
				return nil
			}
		}
	}
}

type repl struct {
	session        *chat.Session
	manager        *conversations.Manager
	out            *printer
	conversationID string
}

// handle runs one input line and reports whether the client should exit.
func (r *repl) handle(ctx context.Context, line string) bool {
	switch line {
	case "":
		return false
	case "/quit", "/exit":
		return true
	case "/new":
		r.conversationID = ""
		fmt.Println("Started a new conversation.")
		return false
	case "/history":
		r.history(ctx)
		return false
	case "/list":
		r.list(ctx)
		return false
	}

	res, err := r.session.Send(ctx, r.conversationID, line)
	r.conversationID = r.session.ConversationID()
	switch {
	case err != nil:
		r.out.Failed(err)
	case res.Aborted:
		r.out.Aborted()
	default:
		r.out.Done(res)
	}
	return false
}

func (r *repl) history(ctx context.Context) {
	if r.conversationID == "" {
		fmt.Println("No conversation yet.")
		return
	}
	messages, err := r.manager.RecentMessages(ctx, r.conversationID)
	if err != nil {
		r.out.Failed(err)
		return
	}
	for _, m := range messages {
		r.out.Message(m)
	}
}

func (r *repl) list(ctx context.Context) {
	list, err := r.manager.List(ctx)
	if err != nil {
		r.out.Failed(err)
		return
	}
	if len(list) == 0 {
		fmt.Println("No conversations.")
		return
	}
	for _, c := range list {
		title := c.Title
		if title == "" {
			title = "(untitled)"
		}
		marker := " "
		if c.ID == r.conversationID {
			marker = "*"
		}
		fmt.Printf("%s %s  %s  %s\n", marker, c.ID, c.UpdatedAt.Local().Format(time.DateTime), title)
	}
}
