package bootstrap

import (
	"database/sql"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/target/sitegate/config"
	redisadapter "github.com/target/sitegate/internal/adapters/redis"
	"github.com/target/sitegate/internal/data"
	httpx "github.com/target/sitegate/internal/http"
	"github.com/target/sitegate/internal/ports"
	"github.com/target/sitegate/internal/service"
)

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Auth     *service.AuthService
	Sessions *service.SessionReader
	Posts    *service.PostService
	Stats    *service.StatsService
	Activity *service.ActivityService
	Health   *httpx.HealthHandler
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config *config.AppConfig
	DB     *sql.DB
	// RedisClient is nil when Redis is disabled.
	RedisClient redis.UniversalClient
	Identity    Identity
	Logger      *slog.Logger
}

// serviceRepositories groups data adapters backing service ports; no business rules here.
type serviceRepositories struct {
	Posts    *data.PostRepo
	Profiles *data.ProfileRepo
	Cache    *data.RedisCacheRepo
	Ledger   *redisadapter.CodeLedger
}

func buildRepositories(db *sql.DB, client redis.UniversalClient, cfg config.RedisConfig) serviceRepositories {
	repos := serviceRepositories{
		Posts:    data.NewPostRepo(db),
		Profiles: data.NewProfileRepo(db),
	}
	if client != nil {
		repos.Cache = data.NewRedisCacheRepo(client)
		repos.Ledger = redisadapter.NewCodeLedger(client, cfg.CodeTTL)
	}
	return repos
}

// NewServices wires repositories and identity ports into the services the
// router needs.
func NewServices(deps *ServiceDeps) ServiceContainer {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := deps.Config
	if cfg == nil {
		cfg = &config.AppConfig{}
	}
	repos := buildRepositories(deps.DB, deps.RedisClient, cfg.Redis)

	authOpts := service.AuthServiceOptions{
		Provider: deps.Identity.Provider,
		Profiles: repos.Profiles,
		Config: service.AuthServiceConfig{
			SiteURL:        cfg.SiteURL,
			OAuthProviders: cfg.Auth.OAuthProviders,
			Timeout:        cfg.Auth.RequestTimeout,
			Logger:         logger,
		},
	}
	postOpts := service.PostServiceOptions{
		Repo:     repos.Posts,
		CacheTTL: cfg.Redis.PostCacheTTL,
		Logger:   logger,
	}
	health := &httpx.HealthHandler{Database: repos.Profiles}
	// interface fields stay nil rather than holding typed nil pointers
	if repos.Ledger != nil {
		authOpts.Ledger = repos.Ledger
	}
	if repos.Cache != nil {
		postOpts.Cache = repos.Cache
		health.Redis = repos.Cache
	}

	var refresher ports.SessionRefresher
	if deps.Identity.Provider != nil {
		refresher = deps.Identity.Provider
	}

	return ServiceContainer{
		Auth: service.NewAuthService(authOpts),
		Sessions: service.NewSessionReader(service.SessionReaderOptions{
			Verifier:  deps.Identity.Verifier,
			Refresher: refresher,
			Config: service.SessionReaderConfig{
				Timeout:   cfg.Auth.RequestTimeout,
				ExpiresAt: deps.Identity.ExpiresAt,
				Logger:    logger,
			},
		}),
		Posts: service.NewPostService(postOpts),
		Stats: service.NewStatsService(service.StatsServiceOptions{
			Posts:    repos.Posts,
			Profiles: repos.Profiles,
			Logger:   logger,
		}),
		Activity: service.NewActivityService(repos.Posts, logger),
		Health:   health,
	}
}
