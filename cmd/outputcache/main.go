package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ericselin/outputcache"
	"github.com/ericselin/outputcache/cache"
	"github.com/ericselin/outputcache/internal/config"
	"github.com/ericselin/outputcache/pkg/negotiate"
)

var (
	// CLI flags, overriding the environment when given
	portFlag           int
	storeFlag          string
	dbFilenameFlag     string
	redisAddrFlag      string
	policiesFlag       string
	verbosityTraceFlag bool
	logFilenameFlag    string

	// set with -ldflags "-X main.version=..."
	version string
)

func init() {
	flag.IntVar(&portFlag, "port", 0, "Port to listen on")
	flag.StringVar(&storeFlag, "store", "", "Cache store: memory, sqlite or redis")
	flag.StringVar(&dbFilenameFlag, "db", "", "SQLite file name (use 'memory' for in-memory db)")
	flag.StringVar(&redisAddrFlag, "redis", "", "Redis address")
	flag.StringVar(&policiesFlag, "policies", "", "YAML file with route cache policies")
	flag.BoolVar(&verbosityTraceFlag, "vv", false, "Verbosity: trace logging")
	flag.StringVar(&logFilenameFlag, "log-file", "", "Log file to use (in addition to stdout)")

	if version == "" {
		version = "DEV"
	}
}

func main() {
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	applyFlags(&cfg)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	// set log level
	logLevel := zerolog.DebugLevel
	if verbosityTraceFlag {
		logLevel = zerolog.TraceLevel
	}

	// set up log output to stdout
	// also output to logfile if specified
	logOutputs := make([]io.Writer, 0)
	logOutputs = append(logOutputs, zerolog.ConsoleWriter{Out: os.Stdout})
	if cfg.LogFile != "" {
		if logFileOutput, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644); err != nil {
			log.Fatal().Err(err).Msg("Cannot open log file")
		} else {
			logOutputs = append(logOutputs, logFileOutput)
		}
	}
	multiWriter := zerolog.MultiLevelWriter(logOutputs...)
	log.Logger = log.Level(logLevel).Output(multiWriter).
		With().Timestamp().Str("version", version).Logger()

	policies := config.Policies{}
	if cfg.PoliciesFile != "" {
		if policies, err = config.LoadPolicies(cfg.PoliciesFile); err != nil {
			log.Fatal().Err(err).Msg("Could not load policies")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("store", cfg.Store).Msg("Could not open cache store")
	}
	defer closeStore()
	if sweeper, ok := store.(cache.Sweeper); ok && cfg.SweepInterval > 0 {
		go cache.Sweep(ctx, sweeper, cfg.SweepInterval, log.Logger)
	}

	sess := scs.New()
	sess.Lifetime = 12 * time.Hour
	sess.Cookie.HttpOnly = true
	sess.Cookie.SameSite = http.SameSiteLaxMode

	metrics := outputcache.NewMetrics()
	oc := outputcache.New(outputcache.Config{
		Store:      store,
		Logger:     &log.Logger,
		Negotiator: negotiate.NewAccept("application/json", "text/plain"),
		Authenticated: func(r *http.Request) bool {
			return sess.Exists(r.Context(), sessionUserKey)
		},
		KeyPrefix:         cfg.KeyPrefix,
		Metrics:           metrics,
		CacheStatusHeader: cfg.CacheStatus,
	})

	s := &server{
		oc:       oc,
		policies: policies,
		sess:     sess,
		teams:    newTeamStore(),
		metrics:  metrics,
		log:      log.Logger,
	}
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: s.routes(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Could not shut down server")
		}
	}()

	log.Info().Msgf("Serving on port %d with %s store", cfg.Port, cfg.Store)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("Server failed")
	}
	// let pending cache writes finish before closing the store
	oc.Wait()
	log.Info().Msg("Server stopped")
}

func applyFlags(cfg *config.Config) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			cfg.Port = portFlag
		case "store":
			cfg.Store = storeFlag
		case "db":
			cfg.SQLitePath = dbFilenameFlag
		case "redis":
			cfg.RedisAddr = redisAddrFlag
		case "policies":
			cfg.PoliciesFile = policiesFlag
		case "log-file":
			cfg.LogFile = logFilenameFlag
		}
	})
}

func openStore(ctx context.Context, cfg config.Config) (cache.Store, func(), error) {
	switch cfg.Store {
	case config.StoreSQLite:
		dbFilename := cfg.SQLitePath
		if dbFilename == "memory" {
			dbFilename = ""
		}
		s, err := cache.NewSQLiteStore(dbFilename)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	case config.StoreRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("ping redis %s: %w", cfg.RedisAddr, err)
		}
		return cache.NewRedisStore(client, "outputcache:"), func() { client.Close() }, nil
	default:
		return cache.NewMemoryStore(), func() {}, nil
	}
}
