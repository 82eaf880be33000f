package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/accountkit/modules/account"
	"github.com/dmitrymomot/accountkit/pkg/auth"
	"github.com/dmitrymomot/accountkit/pkg/auth/mongostore"
	"github.com/dmitrymomot/accountkit/pkg/auth/pgstore"
	"github.com/dmitrymomot/accountkit/pkg/auth/redisstate"
	"github.com/dmitrymomot/accountkit/pkg/config"
	"github.com/dmitrymomot/accountkit/pkg/cookie"
	"github.com/dmitrymomot/accountkit/pkg/email"
	"github.com/dmitrymomot/accountkit/pkg/environment"
	"github.com/dmitrymomot/accountkit/pkg/hasher"
	"github.com/dmitrymomot/accountkit/pkg/httpserver"
	"github.com/dmitrymomot/accountkit/pkg/jwt"
	"github.com/dmitrymomot/accountkit/pkg/logger"
	"github.com/dmitrymomot/accountkit/pkg/mailer"
	"github.com/dmitrymomot/accountkit/pkg/mongo"
	"github.com/dmitrymomot/accountkit/pkg/pg"
	"github.com/dmitrymomot/accountkit/pkg/ratelimiter"
	"github.com/dmitrymomot/accountkit/pkg/redis"
)

type appConfig struct {
	StoreDriver  string        `env:"STORE_DRIVER" envDefault:"memory"` // postgres | mongo | memory
	APIPrefix    string        `env:"API_PREFIX" envDefault:"/api/v1/users"`
	ReadyTimeout time.Duration `env:"READY_TIMEOUT" envDefault:"3s"`
}

func main() {
	if err := run(context.Background()); err != nil {
		slog.Error("server exited", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	var (
		envCfg  environment.Config
		logCfg  logger.Config
		appCfg  appConfig
		authCfg auth.Config
		jwtCfg  jwt.Config
		httpCfg httpserver.Config
		mailCfg email.Config
		brand   mailer.Config
		cookCfg cookie.Config
		accCfg  account.Config
		redCfg  redis.Config
		rateCfg ratelimiter.Config
		hashCfg hasher.Config
		google  auth.GoogleOAuthConfig
		github  auth.GitHubOAuthConfig
		fb      auth.FacebookOAuthConfig
	)
	for _, load := range []func() error{
		func() error { return config.Load(&envCfg) },
		func() error { return config.Load(&logCfg) },
		func() error { return config.Load(&appCfg) },
		func() error { return config.Load(&authCfg) },
		func() error { return config.Load(&jwtCfg) },
		func() error { return config.Load(&httpCfg) },
		func() error { return config.Load(&mailCfg) },
		func() error { return config.Load(&brand) },
		func() error { return config.Load(&cookCfg) },
		func() error { return config.Load(&accCfg) },
		func() error { return config.Load(&redCfg) },
		func() error { return config.Load(&rateCfg) },
		func() error { return config.Load(&hashCfg) },
		func() error { return config.Load(&google) },
		func() error { return config.Load(&github) },
		func() error { return config.Load(&fb) },
	} {
		if err := load(); err != nil {
			return err
		}
	}

	env := envCfg.Environment()
	log := logger.NewFromConfig(logCfg, env,
		logger.WithContextValue("request_id", middleware.RequestIDKey),
	)
	logger.SetAsDefault(log)

	var (
		cleanup []func()
		checks  = map[string]httpserver.Check{}
	)
	defer func() {
		for i := len(cleanup) - 1; i >= 0; i-- {
			cleanup[i]()
		}
	}()

	store, states, err := openStores(ctx, appCfg.StoreDriver, log, checks, &cleanup)
	if err != nil {
		return err
	}

	var limits ratelimiter.Store
	if redCfg.Enabled() {
		client, err := redis.Connect(ctx, redCfg)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		cleanup = append(cleanup, func() { _ = client.Close() })
		checks["redis"] = redis.Healthcheck(client)
		states = redisstate.New(client, redCfg.KeyPrefix)
		limits = ratelimiter.NewRedisStore(client, redCfg.KeyPrefix)
		log.Info("oauth state and rate limits in redis")
	} else {
		mem := ratelimiter.NewMemoryStore(5 * time.Minute)
		cleanup = append(cleanup, mem.Close)
		limits = mem
	}
	limiter, err := ratelimiter.NewBucket(limits, rateCfg)
	if err != nil {
		return err
	}

	sender, err := email.New(mailCfg)
	if err != nil {
		return err
	}
	notifier, err := mailer.New(sender, brand, mailer.WithLogger(log))
	if err != nil {
		return err
	}

	signer, err := jwt.NewFromConfig(jwtCfg)
	if err != nil {
		return err
	}

	opts := append(authCfg.Options(env.IsProduction()),
		auth.WithLogger(log),
		auth.WithHasher(hasher.NewFromConfig(hashCfg)),
	)
	sessions := auth.NewSessionIssuer(store, signer, opts...)
	svc := auth.NewService(store, notifier, sessions, opts...)

	var adapters []auth.ProviderAdapter
	if google.Enabled() {
		adapters = append(adapters, auth.NewGoogleAdapter(google))
	}
	if github.Enabled() {
		adapters = append(adapters, auth.NewGitHubAdapter(github))
	}
	if fb.Enabled() {
		adapters = append(adapters, auth.NewFacebookAdapter(fb))
	}
	for _, a := range adapters {
		log.Info("oauth provider enabled", logger.Provider(a.Provider().String()))
	}

	cookies, err := cookie.NewFromConfig(cookCfg, cookie.WithSecure(cookCfg.Secure || env.IsProduction()))
	if err != nil {
		return err
	}

	handlerOpts := []account.Option{
		account.WithConfig(accCfg),
		account.WithLogger(log),
		account.WithRateLimiter(limiter),
	}
	if len(adapters) > 0 {
		handlerOpts = append(handlerOpts, account.WithOAuth(auth.NewOAuthFlow(svc, states, adapters, opts...)))
	}
	accounts := account.New(svc, cookies, authCfg.CookieName, handlerOpts...)

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Get("/health/live", httpserver.LivenessHandler())
	r.Get("/health/ready", httpserver.ReadinessHandler(log, appCfg.ReadyTimeout, checks))
	r.Mount(appCfg.APIPrefix, accounts.Routes())

	srv := httpserver.NewFromConfig(httpCfg, httpserver.WithLogger(log))
	return srv.Run(ctx, r)
}

func openStores(ctx context.Context, driver string, log *slog.Logger, checks map[string]httpserver.Check, cleanup *[]func()) (auth.Store, auth.StateStore, error) {
	mem := auth.NewMemoryStore()

	switch driver {
	case "postgres":
		var cfg pg.Config
		if err := config.Load(&cfg); err != nil {
			return nil, nil, err
		}
		pool, err := pg.Connect(ctx, cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres: %w", err)
		}
		*cleanup = append(*cleanup, pool.Close)
		if err := pgstore.Migrate(ctx, pool, cfg, log); err != nil {
			return nil, nil, err
		}
		checks["postgres"] = pg.Healthcheck(pool)
		return pgstore.New(pool), mem, nil

	case "mongo":
		var cfg mongo.Config
		if err := config.Load(&cfg); err != nil {
			return nil, nil, err
		}
		db, err := mongo.ConnectDatabase(ctx, cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("mongo: %w", err)
		}
		*cleanup = append(*cleanup, func() { _ = db.Client().Disconnect(context.Background()) })
		st := mongostore.New(db)
		if err := st.EnsureIndexes(ctx); err != nil {
			return nil, nil, err
		}
		checks["mongo"] = mongo.Healthcheck(db.Client())
		return st, mem, nil

	case "memory", "":
		log.Warn("using in-memory account store; data is lost on restart")
		return mem, mem, nil
	}
	return nil, nil, errors.New("unknown STORE_DRIVER " + driver)
}
