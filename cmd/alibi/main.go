// Command alibi is the single executable: "serve" runs the HTTP API and
// background collaborators, "simulator"/"users" give operators a CLI path
// to the same controllers the HTTP surface exposes, for scripting and
// bootstrap without a running server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/jackc/pgx/v5/pgxpool"

	"alibi/internal/audit"
	"alibi/internal/clock"
	"alibi/internal/domain"
	"alibi/internal/httpapi"
	"alibi/internal/hub"
	"alibi/internal/identity"
	"alibi/internal/ingestion"
	"alibi/internal/llm"
	"alibi/internal/logstore"
	"alibi/internal/platform/config"
	"alibi/internal/platform/httpserver"
	"alibi/internal/platform/metrics"
	rediscli "alibi/internal/platform/redis"
	"alibi/internal/platform/tracing"
	"alibi/internal/ratelimit"
	"alibi/internal/report"
	"alibi/internal/simulator"
	"alibi/internal/supervisor"
	"alibi/internal/watchlist"
)

const (
	exitOK      = 0
	exitBadArgs = 2
	exitStorage = 3
	exitAuth    = 4
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: alibi <serve|simulator|users> ...")
		return exitBadArgs
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	switch args[0] {
	case "serve":
		return runServe(logger)
	case "simulator":
		return runSimulatorCLI(logger, args[1:])
	case "users":
		return runUsersCLI(logger, args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown subcommand %q\n", args[0])
		return exitBadArgs
	}
}

// dataDir returns the directory holding the JSONL stores, user file and
// watchlist file. Configurable so tests and multiple instances don't share
// state; defaults to a local directory so "serve" works out of the box.
func dataDir() string {
	if v := os.Getenv("ALIBI_DATA_DIR"); v != "" {
		return v
	}
	return "./data"
}

// deps bundles every collaborator shared by "serve" and the CLI
// subcommands, so both wire identically.
type deps struct {
	store     *logstore.Store
	users     *identity.UserStore
	tokens    *identity.TokenService
	watchlist *watchlist.Store
	settings  *config.Store
	metrics   *metrics.Metrics
	hub       *hub.Hub
	auditSvc  *audit.Service
	pipeline  *ingestion.Pipeline
	simulator *simulator.Simulator
	report    *report.Generator
	kafkaSink *hub.KafkaSink
	pgPool    *pgxpool.Pool
}

func wire(logger *slog.Logger) (*deps, error) {
	dir := dataDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	store, err := logstore.Open(dir)
	if err != nil {
		return nil, fmt.Errorf("open log store: %w", err)
	}

	users, err := identity.OpenUserStore(filepath.Join(dir, "users.json"))
	if err != nil {
		return nil, fmt.Errorf("open user store: %w", err)
	}
	if users.Count() == 0 {
		credsPath := filepath.Join(dir, ".initial_passwords.txt")
		roles := []domain.Role{domain.RoleOperator, domain.RoleSupervisor, domain.RoleAdmin}
		if err := identity.BootstrapDefaultUsers(users, roles, credsPath); err != nil {
			return nil, fmt.Errorf("bootstrap default users: %w", err)
		}
		logger.Warn("bootstrapped default accounts; read the generated credentials file and delete it", "path", credsPath)
	}

	wlStore, err := watchlist.Open(filepath.Join(dir, "watchlist.json"))
	if err != nil {
		return nil, fmt.Errorf("open watchlist store: %w", err)
	}

	secret, err := identity.LoadOrCreateSecret(filepath.Join(dir, "jwt.secret"))
	if err != nil {
		return nil, fmt.Errorf("load jwt secret: %w", err)
	}
	tokens := identity.NewTokenService(secret, "alibi", identity.DefaultTokenTTL)

	settingsPath := filepath.Join(dir, "settings.json")
	doc, err := config.FromFile(settingsPath, config.FromEnv())
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	settings := config.NewStore(doc, settingsPath)

	m := metrics.New()
	h := hub.New()
	tracer := tracing.New("alibi")

	var mirror *audit.PostgresMirror
	var pgPool *pgxpool.Pool
	if dsn := os.Getenv("ALIBI_POSTGRES_DSN"); dsn != "" {
		pgPool, err = pgxpool.New(context.Background(), dsn)
		if err != nil {
			return nil, fmt.Errorf("connect postgres audit mirror: %w", err)
		}
		mirror = audit.NewPostgresMirror(pgPool)
		if err := mirror.EnsureSchema(context.Background()); err != nil {
			return nil, fmt.Errorf("ensure audit_events schema: %w", err)
		}
	}
	auditSvc := audit.NewService(store, mirror)

	var rewriter *llm.Rewriter
	if doc.LLM.Enabled {
		if apiKey := os.Getenv("ALIBI_ANTHROPIC_API_KEY"); apiKey != "" {
			client := anthropic.NewClient(option.WithAPIKey(apiKey))
			model := os.Getenv("ALIBI_ANTHROPIC_MODEL")
			if model == "" {
				model = "claude-3-5-haiku-20241022"
			}
			rewriter = llm.New(&client.Messages, model, doc.LLM.Timeout())
		} else {
			logger.Warn("llm.enabled is true but ALIBI_ANTHROPIC_API_KEY is unset; rewrite stays disabled")
		}
	}

	pipeline := ingestion.New(store, h, settings, m, tracer, rewriter)
	reportGen := report.New(store, settings, rewriter)
	simCtl := simulator.New(pipeline, clock.Real{}, auditSvc)

	var kafkaSink *hub.KafkaSink
	if brokers := os.Getenv("ALIBI_KAFKA_BROKERS"); brokers != "" {
		kafkaSink, err = hub.NewKafkaSink(strings.Split(brokers, ","), "alibi-incidents", logger)
		if err != nil {
			return nil, fmt.Errorf("connect kafka sink: %w", err)
		}
	}

	if err := settings.Watch(nil, logger); err != nil {
		logger.Warn("settings file watch unavailable", "error", err)
	}

	return &deps{
		store: store, users: users, tokens: tokens, watchlist: wlStore,
		settings: settings, metrics: m, hub: h, auditSvc: auditSvc,
		pipeline: pipeline, simulator: simCtl, report: reportGen,
		kafkaSink: kafkaSink, pgPool: pgPool,
	}, nil
}

func runServe(logger *slog.Logger) int {
	d, err := wire(logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		return exitStorage
	}
	defer func() {
		d.kafkaSink.Close()
		if d.pgPool != nil {
			d.pgPool.Close()
		}
	}()

	var limiter *ratelimit.Limiter
	if addr := os.Getenv("ALIBI_REDIS_ADDR"); addr != "" {
		redisClient, err := rediscli.New(addr)
		if err != nil {
			logger.Error("redis connect failed", "error", err)
			return exitStorage
		}
		limiter = ratelimit.New(redisClient)
	} else {
		limiter = ratelimit.New(nil)
	}

	router := httpapi.NewRouter(httpapi.Deps{
		Users:       d.users,
		Tokens:      d.tokens,
		Incidents:   d.store,
		Pipeline:    d.pipeline,
		Settings:    d.settings,
		Metrics:     d.metrics,
		Audit:       d.auditSvc,
		Watchlist:   d.watchlist,
		Report:      d.report,
		Simulator:   d.simulator,
		Hub:         d.hub,
		RateLimiter: limiter,
		Logger:      logger,
		CORSOrigins: corsOrigins(),
	})

	doc := d.settings.Get()
	addr := fmt.Sprintf("%s:%d", doc.API.Host, doc.API.Port)
	server := httpserver.New(addr, router)

	if d.kafkaSink != nil {
		kafkaCtx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go d.kafkaSink.Run(kafkaCtx, d.hub)
	}

	sup := &supervisor.Supervisor{
		Server:    server,
		Store:     d.store,
		Hub:       d.hub,
		Simulator: d.simulator,
		Logger:    logger,
	}
	if err := sup.Run(context.Background()); err != nil {
		logger.Error("server exited with error", "error", err)
		return exitStorage
	}
	return exitOK
}

func runSimulatorCLI(logger *slog.Logger, args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: alibi simulator <start|stop|replay> ...")
		return exitBadArgs
	}
	d, err := wire(logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		return exitStorage
	}
	defer closeDeps(d)

	switch args[0] {
	case "start":
		// This CLI has no server to hand the running simulator off to, so
		// start runs in the foreground: it generates into the same JSONL
		// store "serve" would use until interrupted, then drains and exits.
		// Use the HTTP admin endpoints instead for start/stop against a
		// live "serve" process.
		fs := newFlagSet("simulator start")
		scenario := fs.String("scenario", "normal_day", "scenario preset name")
		rate := fs.Float64("rate", 10, "events per minute")
		seed := fs.Int64("seed", 1, "PRNG seed")
		if err := fs.Parse(args[1:]); err != nil {
			return exitBadArgs
		}
		if _, err := d.simulator.Start(*scenario, *rate, *seed); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return exitBadArgs
		}
		fmt.Fprintln(os.Stderr, "simulator running, press Ctrl+C to stop")
		waitForSignal()
		status, err := d.simulator.Stop()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return exitStorage
		}
		fmt.Printf("%+v\n", status)
		return exitOK
	case "stop":
		fmt.Fprintln(os.Stderr, "stop only applies to a simulator started by this same process; use the HTTP admin endpoints to stop one running under \"serve\"")
		return exitBadArgs
	case "replay":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: alibi simulator replay <file>")
			return exitBadArgs
		}
		data, err := os.ReadFile(args[1])
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return exitStorage
		}
		result, err := d.simulator.Replay(context.Background(), data)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return exitStorage
		}
		fmt.Printf("%+v\n", result)
		return exitOK
	default:
		fmt.Fprintf(os.Stderr, "unknown simulator subcommand %q\n", args[0])
		return exitBadArgs
	}
}

func runUsersCLI(logger *slog.Logger, args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: alibi users <add|disable|reset> ...")
		return exitBadArgs
	}
	d, err := wire(logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		return exitStorage
	}
	defer closeDeps(d)

	switch args[0] {
	case "add":
		fs := newFlagSet("users add")
		username := fs.String("username", "", "account username")
		password := fs.String("password", "", "account password")
		role := fs.String("role", "operator", "operator|supervisor|admin")
		if err := fs.Parse(args[1:]); err != nil {
			return exitBadArgs
		}
		if *username == "" || *password == "" {
			fmt.Fprintln(os.Stderr, "--username and --password are required")
			return exitBadArgs
		}
		r, err := parseRole(*role)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return exitBadArgs
		}
		if _, err := d.users.Create(*username, *password, r); err != nil {
			return exitErrorCode(err)
		}
		fmt.Printf("created user %q with role %q\n", *username, r)
		return exitOK
	case "disable":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: alibi users disable <username>")
			return exitBadArgs
		}
		if err := d.users.SetDisabled(args[1], true); err != nil {
			return exitErrorCode(err)
		}
		fmt.Printf("disabled user %q\n", args[1])
		return exitOK
	case "reset":
		fs := newFlagSet("users reset")
		username := fs.String("username", "", "account username")
		password := fs.String("password", "", "new password")
		if err := fs.Parse(args[1:]); err != nil {
			return exitBadArgs
		}
		if *username == "" || *password == "" {
			fmt.Fprintln(os.Stderr, "--username and --password are required")
			return exitBadArgs
		}
		if err := d.users.ResetPassword(*username, *password); err != nil {
			return exitErrorCode(err)
		}
		fmt.Printf("reset password for user %q\n", *username)
		return exitOK
	default:
		fmt.Fprintf(os.Stderr, "unknown users subcommand %q\n", args[0])
		return exitBadArgs
	}
}

func exitErrorCode(err error) int {
	fmt.Fprintln(os.Stderr, err)
	switch {
	case errors.Is(err, domain.ErrAuthFailed), errors.Is(err, domain.ErrForbidden):
		return exitAuth
	case errors.Is(err, domain.ErrStorageUnavailable):
		return exitStorage
	default:
		return exitBadArgs
	}
}

func parseRole(s string) (domain.Role, error) {
	switch domain.Role(s) {
	case domain.RoleOperator, domain.RoleSupervisor, domain.RoleAdmin:
		return domain.Role(s), nil
	default:
		return "", fmt.Errorf("unknown role %q: must be operator, supervisor or admin", s)
	}
}

func corsOrigins() []string {
	if v := os.Getenv("ALIBI_CORS_ORIGINS"); v != "" {
		return strings.Split(v, ",")
	}
	return []string{"*"}
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	return fs
}

func waitForSignal() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
}

func closeDeps(d *deps) {
	d.kafkaSink.Close()
	if d.pgPool != nil {
		d.pgPool.Close()
	}
	_ = d.store.Close()
}
