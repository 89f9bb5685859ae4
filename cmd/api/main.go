package main

import (
	"context"
	"encoding/json"
	"log"
	"log/slog"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"linkpulse.local/gee"
	"linkpulse.local/gee/middleware"
	"linkpulse.local/internal/app/shortlink"
	"linkpulse.local/internal/app/shortlink/account"
	"linkpulse.local/internal/app/shortlink/analytics"
	slcache "linkpulse.local/internal/app/shortlink/cache"
	shortlinkhttpapi "linkpulse.local/internal/app/shortlink/httpapi"
	"linkpulse.local/internal/app/shortlink/memstore"
	"linkpulse.local/internal/app/shortlink/repo"
	"linkpulse.local/internal/platform/auth"
	platformcache "linkpulse.local/internal/platform/cache"
	"linkpulse.local/internal/platform/config"
	"linkpulse.local/internal/platform/db"
	"linkpulse.local/internal/platform/httpmiddleware"
	"linkpulse.local/internal/platform/httpserver"
	"linkpulse.local/internal/platform/metrics"
	"linkpulse.local/internal/platform/migrate"
	"linkpulse.local/internal/platform/ratelimit"
	"linkpulse.local/internal/platform/trace"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// storage 是按 STORAGE_DRIVER 组装出来的存储层
type storage struct {
	links    shortlink.LinkStore
	events   shortlink.EventStore
	users    account.Store
	slugs    func(ctx context.Context, limit int) ([]string, error) // 预热布隆过滤器
	ping     func(ctx context.Context) error
	slCache  *slcache.SlugCache
	closeFns []func()
}

func (s *storage) Close() {
	for i := len(s.closeFns) - 1; i >= 0; i-- {
		s.closeFns[i]()
	}
}

func main() {
	cfg := config.Load()

	var h slog.Handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel})
	if cfg.LogFormat == "text" {
		h = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel})
	}
	slog.SetDefault(slog.New(h).With("service", cfg.ServiceName))

	metrics.Init()

	if cfg.TracingEnabled {
		shutdown := trace.InitTrace(trace.Options{
			Endpoint:       cfg.OtlpGrpcEndpoint,
			ServiceName:    cfg.OtlpServiceName,
			ServiceVersion: version,
			SampleRatio:    cfg.TraceSampleRatio,
		})
		if shutdown == nil {
			slog.Error("Trace init failed")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					slog.Error("trace shutdown failed", "err", err)
				}
			}()
		}
	} else {
		slog.Warn("Tracing disabled by config", "TRACING_ENABLED", false)
	}

	//Redis：缓存和限流共用；连不上时降级为无缓存、不限流
	var redisClient *redis.Client
	if cfg.CacheEnabled || cfg.RateLimitEnabled {
		client, err := platformcache.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			slog.Warn("redis unavailable, running without cache and rate limit", "addr", cfg.RedisAddr, "err", err)
		} else {
			redisClient = client
			defer redisClient.Close()
		}
	}

	store, err := openStorage(cfg, redisClient)
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	//限流器
	var limiter *ratelimit.Limiter
	if cfg.RateLimitEnabled && redisClient != nil {
		limiter = ratelimit.NewLimiter(redisClient)
	} else {
		slog.Warn("RateLimit disabled", "RATELIMIT_ENABLED", cfg.RateLimitEnabled, "redis", redisClient != nil)
	}

	//布隆过滤器：生成短码前预检查，预期 BloomCapacity 个短码，1% 误判率
	var filter shortlink.SlugFilter
	if cfg.BloomEnabled {
		bf := slcache.NewBloomFilter(cfg.BloomCapacity, 0.01)
		warmCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		slugs, err := store.slugs(warmCtx, int(cfg.BloomCapacity))
		cancel()
		if err != nil {
			slog.Warn("bloom warm failed, starting empty", "err", err)
		}
		bf.Warm(slugs)
		slog.Info("bloom filter ready", "slugs", len(slugs), "approx_count", bf.Count())
		filter = bf
	}

	//点击分析链路（根据配置选择 Channel 或 Kafka）
	recorder := analytics.NewRecorder(store.events)
	consumerOpts := analytics.ConsumerOptions{
		BatchSize:     cfg.AnalyticsBatchSize,
		FlushInterval: cfg.AnalyticsFlushInterval,
	}
	consumerCtx, cancelConsumer := context.WithCancel(context.Background())
	defer cancelConsumer()
	consumerDone := make(chan struct{})

	var dispatcher analytics.Dispatcher
	if cfg.KafkaEnabled {
		slog.Info("使用 Kafka 传输点击事件", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
		dispatcher = analytics.NewKafkaDispatcher(cfg.KafkaBrokers, cfg.KafkaTopic)
		kc := analytics.NewKafkaConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, recorder, consumerOpts)
		go func() {
			defer close(consumerDone)
			kc.Run(consumerCtx)
		}()
		defer kc.Close()
	} else {
		slog.Info("使用 Channel 传输点击事件", "buffer", cfg.AnalyticsBuffer)
		cd := analytics.NewChannelDispatcher(cfg.AnalyticsBuffer)
		dispatcher = cd
		consumer := analytics.NewConsumer(recorder, cd, consumerOpts)
		go func() {
			defer close(consumerDone)
			consumer.Run(consumerCtx)
		}()
	}

	svc := shortlink.NewService(store.links, dispatcher, shortlink.Options{
		SlugLength:  cfg.SlugLength,
		MaxAttempts: cfg.SlugMaxAttempts,
		Filter:      filter,
	})
	aggregator := analytics.NewAggregator(store.links, store.events, cfg.Location())

	// JWT
	ts, jwtErr := auth.NewHS256Service(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL)
	if jwtErr != nil {
		log.Fatal(jwtErr)
	}

	// 对外业务
	r := gee.New()
	r.Use(gee.Recovery(), middleware.ReqID(), middleware.AccessLog(), httpmiddleware.Metrics(), httpmiddleware.TraceName())

	deps := shortlinkhttpapi.Deps{
		Links:         svc,
		Events:        store.events,
		Aggregator:    aggregator,
		Accounts:      account.NewService(store.users),
		Tokens:        ts,
		Limiter:       limiter,
		PublicBaseURL: cfg.PublicBaseURL,
	}
	shortlinkhttpapi.RegisterAPIRoutes(r.Group("/api/v1"), deps)
	shortlinkhttpapi.RegisterPublicRoutes(r, deps)

	r.GET("/healthz", func(ctx *gee.Context) {
		ctx.String(http.StatusOK, "ok")
	})

	publicHandler := http.Handler(r)
	if cfg.TracingEnabled {
		publicHandler = otelhttp.NewHandler(r, "http")
	}
	publicSrv := httpserver.New(cfg, publicHandler)

	// 仅本机/内网
	adminMux := http.NewServeMux()
	adminMux.Handle("/metrics", promhttp.Handler())
	// 存储连接状态检测
	adminMux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		pingCtx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if err := store.ping(pingCtx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("storage not ready"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ready"))
	})

	adminMux.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"service_name":   cfg.ServiceName,
			"version":        version,
			"commit":         commit,
			"build_time":     buildTime,
			"go_version":     runtime.Version(),
			"storage_driver": cfg.StorageDriver,
		})
	})

	if cfg.PprofEnabled {
		adminMux.HandleFunc("/debug/pprof/", pprof.Index)
		adminMux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		adminMux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		adminMux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		adminMux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	adminSrv := &http.Server{
		Addr:              cfg.AdminAddr, // 推荐：127.0.0.1:6060
		Handler:           adminMux,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 公网服务停止接收请求后：关闭投递端，让 consumer 把剩余点击写完
	drainAnalytics := func(ctx context.Context) error {
		dispatcher.Close()
		if cfg.KafkaEnabled {
			cancelConsumer()
		}
		select {
		case <-consumerDone:
			slog.Info("analytics drained")
			return nil
		case <-ctx.Done():
			cancelConsumer()
			return ctx.Err()
		}
	}

	errch := make(chan error, 2)
	go func() {
		errch <- httpserver.RunContext(stopCtx, publicSrv, cfg.ShutdownTimeout, drainAnalytics)
	}()
	go func() {
		errch <- httpserver.RunContext(stopCtx, adminSrv, cfg.ShutdownTimeout)
	}()
	slog.Info("linkpulse started", "addr", cfg.Addr, "admin_addr", cfg.AdminAddr, "storage", cfg.StorageDriver, "version", version)

	err = <-errch
	if err != nil {
		stop()
		select {
		case <-errch:
		case <-time.After(cfg.ShutdownTimeout + time.Second):
		}
		log.Fatal(err)
	}

	stop()
	<-errch
}

func openStorage(cfg config.Config, redisClient *redis.Client) (*storage, error) {
	if cfg.StorageDriver == config.StorageDriverMemory {
		slog.Warn("using in-memory storage, data is lost on restart")
		mem := memstore.New()
		return &storage{
			links:  mem,
			events: mem,
			users:  memstore.NewUsers(),
			slugs: func(ctx context.Context, _ int) ([]string, error) {
				return mem.Slugs(ctx)
			},
			ping: func(context.Context) error { return nil },
		}, nil
	}

	//DB
	dbCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	dbPool, err := db.New(dbCtx, cfg.DBDSN)
	if err != nil {
		return nil, err
	}
	slog.Info("数据库连接成功")
	s := &storage{closeFns: []func(){dbPool.Close}}

	if cfg.MigrateOnStart {
		if err := runMigrations(dbPool, cfg.MigrationsDir); err != nil {
			s.Close()
			return nil, err
		}
	}

	//短链缓存：L1 ristretto + L2 Redis
	if cfg.CacheEnabled && redisClient != nil {
		localCache, err := slcache.NewLocalCache(100000, 1<<24) // 10万条目，16MB
		if err != nil {
			s.Close()
			return nil, err
		}
		s.slCache = slcache.NewSlugCache(redisClient, localCache)
		s.closeFns = append(s.closeFns, s.slCache.Close)
	}

	linksRepo := repo.NewLinksRepo(dbPool, s.slCache)
	s.links = linksRepo
	s.events = repo.NewEventsRepo(dbPool)
	s.users = repo.NewUsersRepo(dbPool)
	s.slugs = linksRepo.ActiveSlugs
	s.ping = dbPool.Ping
	return s, nil
}

func runMigrations(pool *pgxpool.Pool, dir string) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	res, err := migrate.Up(ctx, pool, migrate.Options{Dir: dir})
	if err != nil {
		return err
	}
	slog.Info("migrations done", "source", res.Source, "applied", len(res.AppliedFiles), "skipped", len(res.SkippedFiles))
	return nil
}
