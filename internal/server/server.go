package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/victornm/orgquiz/internal/api"
	"github.com/victornm/orgquiz/internal/attemptcache"
	"github.com/victornm/orgquiz/internal/auth"
	"github.com/victornm/orgquiz/internal/company"
	"github.com/victornm/orgquiz/internal/event"
	"github.com/victornm/orgquiz/internal/leaderboard"
	"github.com/victornm/orgquiz/internal/membership"
	"github.com/victornm/orgquiz/internal/notify"
	"github.com/victornm/orgquiz/internal/quiz"
	"github.com/victornm/orgquiz/internal/store"
	"github.com/victornm/orgquiz/internal/store/memory"
	"github.com/victornm/orgquiz/internal/store/postgres"
	"github.com/victornm/orgquiz/internal/telemetry"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type RedisConfig struct {
	Addrs  []string
	Pass   string
	Prefix string
}

type PostgresConfig struct {
	Addr     string
	User     string
	Pass     string
	Name     string
	MaxConns int32
}

type Config struct {
	HTTP struct {
		Port int32
	}

	GRPC struct {
		Port int32
	}

	Auth struct {
		Secret string
		Issuer string
		TTL    time.Duration
	}

	Storage struct {
		// Driver is postgres or memory.
		Driver string
	}

	Store struct {
		ReadRetries uint
	}

	Postgres PostgresConfig

	Redis struct {
		Cache       RedisConfig
		Leaderboard RedisConfig
		// Pubsub is optional. Without addresses no notification is sent.
		Pubsub RedisConfig
	}

	Attempt struct {
		CacheTTL time.Duration
	}
}

// DefaultConfig holds the values used for keys the config file leaves out.
func DefaultConfig() Config {
	var c Config
	c.HTTP.Port = 8080
	c.GRPC.Port = 9090
	c.Auth.Issuer = "orgquiz"
	c.Auth.TTL = time.Hour
	c.Storage.Driver = DriverPostgres
	c.Store.ReadRetries = 3
	c.Postgres.MaxConns = 10
	c.Redis.Cache.Prefix = "orgquiz"
	c.Redis.Leaderboard.Prefix = "orgquiz:leaderboard"
	c.Redis.Pubsub.Prefix = "orgquiz"
	c.Attempt.CacheTTL = attemptcache.DefaultTTL
	return c
}

type Server struct {
	c Config

	eb *event.Bus

	infra struct {
		redis struct {
			cache       redis.UniversalClient
			leaderboard redis.UniversalClient
			pubsub      redis.UniversalClient
		}

		postgres *pgxpool.Pool
		store    store.Store
	}

	service struct {
		auth        *auth.Authenticator
		company     *company.Service
		membership  *membership.Service
		quiz        *quiz.Service
		leaderboard *leaderboard.Service
	}

	http   *http.Server
	grpc   *grpc.Server
	health *health.Server
}

func Init(c Config) (*Server, error) {
	if c.Auth.Secret == "" {
		return nil, fmt.Errorf("server: auth.secret is required")
	}

	s := &Server{c: c}

	s.eb = event.NewBus()

	if err := s.initInfra(); err != nil {
		return nil, fmt.Errorf("server: init infra: %w", err)
	}

	s.initService()
	if err := s.initAPI(); err != nil {
		return nil, fmt.Errorf("server: init api: %w", err)
	}
	return s, nil
}

func (s *Server) initInfra() error {
	if err := s.initRedis(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	if err := s.initStore(); err != nil {
		return fmt.Errorf("store: %w", err)
	}

	return nil
}

func ConnectRedis(ctx context.Context, c RedisConfig) (redis.UniversalClient, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	r := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    c.Addrs,
		Password: c.Pass,
	})

	if err := telemetry.MonitorRedis(r); err != nil {
		return nil, err
	}

	if err := r.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return r, nil
}

func (s *Server) initRedis() error {
	var err error
	s.infra.redis.cache, err = ConnectRedis(context.Background(), s.c.Redis.Cache)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}

	// The leaderboard shares the cache instance unless it has its own addresses.
	s.infra.redis.leaderboard = s.infra.redis.cache
	if len(s.c.Redis.Leaderboard.Addrs) > 0 {
		s.infra.redis.leaderboard, err = ConnectRedis(context.Background(), s.c.Redis.Leaderboard)
		if err != nil {
			return fmt.Errorf("leaderboard: %w", err)
		}
	}

	if len(s.c.Redis.Pubsub.Addrs) == 0 {
		slog.Warn("server: redis pubsub not configured, notifications disabled")
		return nil
	}

	s.infra.redis.pubsub, err = ConnectRedis(context.Background(), s.c.Redis.Pubsub)
	if err != nil {
		return fmt.Errorf("pubsub: %w", err)
	}

	return nil
}

// ConnectPostgres opens a pool and checks it can reach the database.
func ConnectPostgres(ctx context.Context, c PostgresConfig) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cc, err := pgxpool.ParseConfig(fmt.Sprintf("postgres://%s:%s@%s/%s", c.User, c.Pass, c.Addr, c.Name))
	if err != nil {
		return nil, err
	}
	if c.MaxConns > 0 {
		cc.MaxConns = c.MaxConns
	}

	db, err := pgxpool.NewWithConfig(ctx, cc)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func (s *Server) initStore() error {
	switch s.c.Storage.Driver {
	case DriverMemory:
		slog.Warn("server: using in-memory storage, data is lost on shutdown")
		s.infra.store = memory.New()
		return nil

	case DriverPostgres:
		db, err := ConnectPostgres(context.Background(), s.c.Postgres)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		s.infra.postgres = db
		s.infra.store = postgres.New(postgres.Config{
			DB:          db,
			ReadRetries: s.c.Store.ReadRetries,
		})
		return nil

	default:
		return fmt.Errorf("unknown storage driver %q", s.c.Storage.Driver)
	}
}

func (s *Server) initService() {
	s.service.auth = auth.NewAuthenticator(auth.Config{
		Users:  s.infra.store,
		Secret: s.c.Auth.Secret,
		Issuer: s.c.Auth.Issuer,
		TTL:    s.c.Auth.TTL,
	})

	s.service.company = company.NewService(company.Config{
		Store:    s.infra.store,
		EventBus: s.eb,
	})

	s.service.membership = membership.NewService(membership.Config{
		Store:    s.infra.store,
		EventBus: s.eb,
	})

	s.service.quiz = quiz.NewService(quiz.Config{
		Store: s.infra.store,
		Cache: attemptcache.New(attemptcache.Config{
			Redis:  s.infra.redis.cache,
			Prefix: s.c.Redis.Cache.Prefix,
			TTL:    s.c.Attempt.CacheTTL,
		}),
		EventBus: s.eb,
	})

	s.service.leaderboard = leaderboard.NewService(leaderboard.Config{
		Store:    s.infra.store,
		EventBus: s.eb,
		Redis:    s.infra.redis.leaderboard,
		Prefix:   s.c.Redis.Leaderboard.Prefix,
	})
}

func (s *Server) initAPI() error {
	if _, err := telemetry.NewMetrics(prometheus.DefaultRegisterer, s.eb); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	if s.infra.redis.pubsub != nil {
		notify.New(notify.Config{
			Redis:    s.infra.redis.pubsub,
			Prefix:   s.c.Redis.Pubsub.Prefix,
			EventBus: s.eb,
		})
	}

	e := gin.New()
	e.GET("/metrics", gin.WrapH(promhttp.Handler()))
	pprof.Register(e, "/debug/pprof")
	e.Use(gin.Recovery())

	api.New(api.Config{
		Router:      e,
		Auth:        s.service.auth,
		Company:     s.service.company,
		Membership:  s.service.membership,
		Quiz:        s.service.quiz,
		Leaderboard: s.service.leaderboard,
	})

	s.grpc = grpc.NewServer(telemetry.GRPCServerInterceptor())
	s.health = health.NewServer()
	healthpb.RegisterHealthServer(s.grpc, s.health)

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.c.HTTP.Port),
		Handler:           e,
		ReadHeaderTimeout: 60 * time.Second,
	}
	return nil
}

func (s *Server) Start() {
	ctx := context.TODO()

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.c.GRPC.Port))
	if err != nil {
		slog.ErrorContext(ctx, "grpc server: listen failed", "error", err)
		panic(err)
	}

	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	var eg errgroup.Group
	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: gRPC listening on port %d", s.c.GRPC.Port))
		return s.grpc.Serve(lis)
	})

	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: HTTP listening on port %d", s.c.HTTP.Port))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	err = eg.Wait()
	if err != nil {
		slog.ErrorContext(ctx, "server: shutdown with error", "error", err)
	}
}

func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.health.Shutdown()
	s.grpc.GracefulStop()
	if err := s.http.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "server: shutdown HTTP failed", "error", err)
	}

	s.eb.Stop()

	closed := make(map[redis.UniversalClient]bool)
	for _, r := range []redis.UniversalClient{s.infra.redis.cache, s.infra.redis.leaderboard, s.infra.redis.pubsub} {
		if r == nil || closed[r] {
			continue
		}
		closed[r] = true
		if err := r.Close(); err != nil {
			slog.ErrorContext(ctx, "server: close redis failed", "error", err)
		}
	}
	if s.infra.postgres != nil {
		s.infra.postgres.Close()
	}

	slog.InfoContext(ctx, "server: shutdown completed")
}
