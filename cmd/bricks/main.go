// Command bricks runs the auth and resource API server. Subcommands cover
// migrations and signing-key generation so a single binary operates the
// whole deployment.
package main

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	rdb "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/bricks/internal/authflow"
	"github.com/dropDatabas3/bricks/internal/billing"
	"github.com/dropDatabas3/bricks/internal/cache"
	"github.com/dropDatabas3/bricks/internal/captcha"
	"github.com/dropDatabas3/bricks/internal/config"
	"github.com/dropDatabas3/bricks/internal/email"
	httpx "github.com/dropDatabas3/bricks/internal/http"
	"github.com/dropDatabas3/bricks/internal/http/handlers"
	"github.com/dropDatabas3/bricks/internal/oauth"
	"github.com/dropDatabas3/bricks/internal/oauth/github"
	"github.com/dropDatabas3/bricks/internal/oauth/google"
	"github.com/dropDatabas3/bricks/internal/observability/logger"
	"github.com/dropDatabas3/bricks/internal/rate"
	"github.com/dropDatabas3/bricks/internal/store/core"
	"github.com/dropDatabas3/bricks/internal/store/memory"
	"github.com/dropDatabas3/bricks/internal/store/pg"
	"github.com/dropDatabas3/bricks/internal/token"
	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	_ = godotenv.Load()

	var configPath string

	root := &cobra.Command{
		Use:          "bricks",
		Short:        "bricks auth and resource API",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", os.Getenv("BRICKS_CONFIG"), "path to config yaml")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the API server",
			RunE: func(cmd *cobra.Command, args []string) error {
				return serve(configPath)
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply pending database migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := config.Load(configPath)
				if err != nil {
					return err
				}
				logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel})
				defer func() { _ = logger.Sync() }()
				ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
				defer cancel()
				if err := pg.RunMigrations(ctx, cfg.Storage.DSN); err != nil {
					return err
				}
				logger.L().Info("migrations applied")
				return nil
			},
		},
		&cobra.Command{
			Use:   "keygen",
			Short: "Generate a base64 ed25519 signing seed",
			RunE: func(cmd *cobra.Command, args []string) error {
				seed := make([]byte, ed25519.SeedSize)
				if _, err := rand.Read(seed); err != nil {
					return err
				}
				fmt.Println(base64.StdEncoding.EncodeToString(seed))
				return nil
			},
		},
		usersCommand(&configPath),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// usersCommand is the admin surface: disable accounts and kill sessions
// without going through the API.
func usersCommand(configPath *string) *cobra.Command {
	users := &cobra.Command{
		Use:   "users",
		Short: "Administer user accounts",
	}

	withStore := func(cmd *cobra.Command, fn func(ctx context.Context, repo core.Repository) error) error {
		cfg, err := config.Load(*configPath)
		if err != nil {
			return err
		}
		logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel})
		defer func() { _ = logger.Sync() }()

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()
		st, err := pg.New(ctx, cfg.Storage.DSN, pg.Config{
			MaxOpenConns:    cfg.Storage.Postgres.MaxOpenConns,
			MinIdleConns:    cfg.Storage.Postgres.MinIdleConns,
			ConnMaxLifetime: cfg.Storage.Postgres.ConnMaxLifetime,
		})
		if err != nil {
			return err
		}
		defer st.Close()
		return fn(ctx, st)
	}

	users.AddCommand(
		&cobra.Command{
			Use:   "disable <user-id>",
			Short: "Soft-delete an account and revoke its sessions",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withStore(cmd, func(ctx context.Context, repo core.Repository) error {
					if err := repo.DisableUser(ctx, args[0]); err != nil {
						return err
					}
					if err := repo.RevokeAllForUser(ctx, args[0]); err != nil {
						return err
					}
					fmt.Printf("user %s disabled\n", args[0])
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "revoke-sessions <user-id>",
			Short: "Revoke every refresh token family for a user",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withStore(cmd, func(ctx context.Context, repo core.Repository) error {
					if err := repo.RevokeAllForUser(ctx, args[0]); err != nil {
						return err
					}
					fmt.Printf("sessions revoked for %s\n", args[0])
					return nil
				})
			},
		},
	)
	return users
}

func serve(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel})
	defer func() { _ = logger.Sync() }()
	log := logger.Named("main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ── Store ──
	var (
		repo     core.Repository
		projects core.ProjectStore
		poolFn   func() *pgxpool.Pool
	)
	switch cfg.Storage.Driver {
	case "memory":
		m := memory.New()
		repo, projects = m, m
		log.Warn("memory store active, data will not survive restarts")
	default:
		if cfg.Storage.Migrate {
			if err := pg.RunMigrations(ctx, cfg.Storage.DSN); err != nil {
				return err
			}
		}
		st, err := pg.New(ctx, cfg.Storage.DSN, pg.Config{
			MaxOpenConns:    cfg.Storage.Postgres.MaxOpenConns,
			MinIdleConns:    cfg.Storage.Postgres.MinIdleConns,
			ConnMaxLifetime: cfg.Storage.Postgres.ConnMaxLifetime,
		})
		if err != nil {
			return err
		}
		defer st.Close()
		repo, projects = st, st
		poolFn = st.Pool
	}

	// ── Cache ──
	cacheClient, err := cache.New(cache.Config{
		Kind:       cfg.Cache.Kind,
		Addr:       cfg.Cache.Redis.Addr,
		DB:         cfg.Cache.Redis.DB,
		Prefix:     cfg.Cache.Redis.Prefix,
		DefaultTTL: cfg.Cache.Memory.DefaultTTL,
	})
	if err != nil {
		return err
	}
	defer func() { _ = cacheClient.Close() }()

	// ── Tokens & flows ──
	issuer, err := token.NewIssuer(cfg.Tokens.Issuer, cfg.Tokens.SigningKey, cfg.Tokens.AccessTTL)
	if err != nil {
		return err
	}
	tokenSvc := token.NewService(issuer, repo, cfg.Tokens.RefreshTTL)

	sender, err := email.New(cfg.Email.Provider, email.SMTPConfig{
		Host:               cfg.Email.SMTP.Host,
		Port:               cfg.Email.SMTP.Port,
		Username:           cfg.Email.SMTP.Username,
		Password:           cfg.Email.SMTP.Password,
		From:               cfg.Email.SMTP.From,
		TLSMode:            cfg.Email.SMTP.TLS,
		InsecureSkipVerify: cfg.Email.SMTP.InsecureSkipVerify,
	})
	if err != nil {
		return err
	}

	flows := authflow.NewService(repo, tokenSvc, sender, authflow.Config{
		VerifyTTL:         cfg.Auth.VerifyTTL,
		ResetTTL:          cfg.Auth.ResetTTL,
		PasswordMinLength: cfg.Auth.Password.MinLength,
		EmailBaseURL:      cfg.Email.BaseURL,
	})

	var validator captcha.Validator = captcha.AlwaysValid{}
	if cfg.Captcha.Enabled {
		validator = captcha.NewHTTPValidator(cfg.Captcha.VerifyURL, cfg.Captcha.Secret)
	}

	// ── Social providers ──
	providers := map[string]oauth.Client{}
	if cfg.Providers.Google.Enabled {
		providers["google"] = google.New(oauth.Config{
			ClientID:     cfg.Providers.Google.ClientID,
			ClientSecret: cfg.Providers.Google.ClientSecret,
			RedirectURL:  cfg.Providers.Google.RedirectURL,
		})
	}
	if cfg.Providers.GitHub.Enabled {
		providers["github"] = github.New(oauth.Config{
			ClientID:     cfg.Providers.GitHub.ClientID,
			ClientSecret: cfg.Providers.GitHub.ClientSecret,
			RedirectURL:  cfg.Providers.GitHub.RedirectURL,
		})
	}

	// ── Rate limiter ──
	var limiter rate.Limiter
	if cfg.Rate.Enabled {
		mk := func(max int, window time.Duration) rate.Limiter {
			if raw, ok := cacheClient.(interface{ Raw() *rdb.Client }); ok {
				return rate.NewRedisLimiter(raw.Raw(), "rl:", max, window)
			}
			return rate.NewMemoryLimiter(max, window)
		}
		limiter = rate.ByPath{
			Default: mk(cfg.Rate.Login.Limit, cfg.Rate.Login.Window),
			Paths: map[string]rate.Limiter{
				"/v1/auth/password/forgot": mk(cfg.Rate.Forgot.Limit, cfg.Rate.Forgot.Window),
			},
		}
	}

	// ── Metrics ──
	metricsHandler, err := httpx.RegisterMetrics(httpx.MetricsConfig{Pool: poolFn})
	if err != nil {
		return err
	}

	// ── Handlers ──
	cookie := handlers.CookieConfig{
		Name:     cfg.Auth.Cookie.Name,
		Domain:   cfg.Auth.Cookie.Domain,
		SameSite: cfg.Auth.Cookie.SameSite,
		Secure:   cfg.Auth.Cookie.Secure,
	}

	authHandler := &handlers.AuthHandler{
		Flows:    flows,
		Tokens:   tokenSvc,
		Users:    repo,
		Captcha:  validator,
		Cookie:   cookie,
		Hostname: cfg.Captcha.Hostname,
	}
	emailHandler := &handlers.EmailFlowsHandler{Flows: flows}
	socialHandler := &handlers.SocialHandler{
		Flows:     flows,
		Providers: providers,
		State:     cacheClient,
		StateTTL:  cfg.Providers.StateTTL,
		Cookie:    cookie,
	}
	projectsHandler := handlers.NewProjectsHandler(projects, cfg.Quota.Projects)
	billingHandler := &handlers.BillingHandler{
		Provider: billing.StaticProvider{Plan: "free"},
		Users:    repo,
	}
	healthHandler := &handlers.HealthHandler{
		StorePing: repo.Ping,
		CachePing: cacheClient.Ping,
	}

	router := httpx.NewRouter(httpx.RouterConfig{
		Auth: httpx.AuthConfig{
			Tokens: tokenSvc,
			Users:  repo,
			Strict: cfg.Tokens.StrictVerify,
		},
		CORSOrigins: cfg.Server.CORSAllowedOrigins,
		AuthLimiter: limiter,
		Metrics:     metricsHandler,
	},
		[]httpx.Registrar{projectsHandler, billingHandler, healthHandler, socialHandler},
		[]httpx.Registrar{authHandler, emailHandler},
	)

	// ── Serve ──
	srv := httpx.NewServer(cfg.Server.Addr, router)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()
	log.Info("server listening", logger.String("addr", cfg.Server.Addr), logger.String("env", cfg.App.Env))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown incomplete", logger.Err(err))
		return err
	}
	return nil
}
