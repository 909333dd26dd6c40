package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	apirest "github.com/guildboard/guildboard/api/rest"
	"github.com/guildboard/guildboard/audit"
	"github.com/guildboard/guildboard/battle"
	"github.com/guildboard/guildboard/cache"
	"github.com/guildboard/guildboard/config"
	dbadapter "github.com/guildboard/guildboard/db"
	"github.com/guildboard/guildboard/identity"
	"github.com/guildboard/guildboard/inbox"
	mw "github.com/guildboard/guildboard/middleware"
	"github.com/guildboard/guildboard/model"
	"github.com/guildboard/guildboard/roster"
	"github.com/guildboard/guildboard/scheduler"
	"github.com/guildboard/guildboard/stats"
)

func main() {
	cfgPath := "config/config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// ---- Logger ----
	var logger *zap.Logger
	var logErr error
	if cfg.Server.Debug {
		logger, logErr = zap.NewDevelopment()
	} else {
		logger, logErr = zap.NewProduction()
	}
	if logErr != nil {
		log.Fatalf("logger: %v", logErr)
	}
	defer logger.Sync()

	// Warn loudly if admin endpoints will be disabled.
	if cfg.Server.AdminKey == "" {
		logger.Warn("server.admin_key is not set; admin endpoints are disabled")
	}

	// ---- Database ----
	db, err := dbadapter.Open(cfg.Database)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	if err := model.AutoMigrate(db); err != nil {
		log.Fatalf("db migrate: %v", err)
	}
	logger.Info("DB initialized")

	// ---- Audit ----
	auditSvc := audit.New(db, logger)
	defer auditSvc.Stop(context.Background())

	// ---- Cache ----
	c, err := cache.NewCache(cache.CacheConfig{
		RedisAddr:       cfg.Cache.RedisAddr,
		RedisPassword:   cfg.Cache.RedisPassword,
		RedisDB:         cfg.Cache.RedisDB,
		LocalGCInterval: cfg.Cache.LocalGCInterval,
		LocalPubSubBuf:  cfg.Cache.LocalPubSubBuf,
	})
	if err != nil {
		log.Fatalf("cache: %v", err)
	}
	pubsub, err := cache.NewPubSub(cache.CacheConfig{
		RedisAddr:       cfg.Cache.RedisAddr,
		RedisPassword:   cfg.Cache.RedisPassword,
		RedisDB:         cfg.Cache.RedisDB,
		LocalGCInterval: cfg.Cache.LocalGCInterval,
		LocalPubSubBuf:  cfg.Cache.LocalPubSubBuf,
	})
	if err != nil {
		log.Fatalf("pubsub: %v", err)
	}
	logger.Info("Cache initialized")

	// ---- Core services ----
	battleSvc := battle.NewService(db, logger)
	rosterImp := roster.NewImporter(db, logger)
	renamer := identity.NewRenamer(db, logger)
	inboxSvc := inbox.NewService(db, battleSvc, logger)
	agg := stats.NewAggregator(db)
	statsCache := stats.NewCache(c, pubsub, agg, cfg.Stats.CacheTTL, logger)
	if err := statsCache.Listen(context.Background()); err != nil {
		logger.Warn("stats invalidation listener failed", zap.Error(err))
	}

	// ---- Scheduler ----
	sched := scheduler.New(logger)
	defer sched.Stop()
	sched.AddTicker("stats_refresh", cfg.Stats.RefreshInterval, func() {
		statsCache.RefreshAll(context.Background(), db)
	})
	sched.AddTicker("inbox_purge", cfg.Stats.RefreshInterval, func() {
		if n, err := inboxSvc.PurgeRejected(cfg.Inbox.RetentionDays); err != nil {
			logger.Warn("inbox purge failed", zap.Error(err))
		} else if n > 0 {
			logger.Info("inbox purge", zap.Int64("deleted", n))
		}
	})

	// ---- Gin HTTP Server ----
	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(mw.TraceID(), mw.Logger(logger), mw.Recovery(logger))
	r.Use(mw.RateLimit(rate.Limit(cfg.Security.RateLimitRPS), cfg.Security.RateLimitBurst))

	// Health check
	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(200, gin.H{"status": "ok"})
	})

	// ---- REST API routes ----
	guildH := apirest.NewGuildHandler(db, agg, logger)
	memberH := apirest.NewMemberHandler(db)
	battleH := apirest.NewBattleHandler(db, battleSvc, statsCache, auditSvc, logger)
	rosterH := apirest.NewRosterHandler(rosterImp, statsCache, auditSvc, logger)
	renameH := apirest.NewRenameHandler(renamer, statsCache, auditSvc, logger)
	statsH := apirest.NewStatsHandler(db, statsCache)
	inboxH := apirest.NewInboxHandler(inboxSvc, statsCache, logger)
	adminH := apirest.NewAdminHandler(db, sched, logger)

	api := r.Group("/api")
	{
		guildsG := api.Group("/guilds")
		guildsG.GET("", guildH.List)
		guildsG.POST("", guildH.Create)
		guildsG.GET("/:id", guildH.Detail)
		guildsG.PUT("/:id", guildH.Update)
		guildsG.DELETE("/:id", guildH.Delete)

		guildsG.GET("/:id/members", memberH.List)
		guildsG.POST("/:id/members", memberH.Create)

		guildsG.GET("/:id/battles", battleH.List)
		guildsG.POST("/:id/battles", battleH.Import)
		guildsG.GET("/:id/battles/:bid", battleH.Detail)
		guildsG.DELETE("/:id/battles/:bid", battleH.Delete)

		guildsG.POST("/:id/roster", rosterH.Upload)
		guildsG.POST("/:id/rename", renameH.Rename)
		guildsG.GET("/:id/stats", statsH.GuildStats)

		guildsG.POST("/:id/inbox", inboxH.Submit)
		guildsG.GET("/:id/inbox", inboxH.List)
		guildsG.POST("/:id/inbox/import-all", inboxH.ImportAll)

		membersG := api.Group("/members")
		membersG.PUT("/:id/notes", memberH.SetNotes)
		membersG.PUT("/:id/fired", memberH.SetFiredAt)
		membersG.PUT("/:id/left", memberH.SetLeftAt)
		membersG.DELETE("/:id", memberH.Delete)

		inboxG := api.Group("/inbox")
		inboxG.POST("/:id/import", inboxH.Import)
		inboxG.POST("/:id/reject", inboxH.Reject)

		adminG := api.Group("/admin")
		adminG.Use(mw.IPWhitelist(cfg.Security.AdminIPs))
		adminG.Use(apirest.AdminAuth(cfg.Server.AdminKey))
		adminG.GET("/metrics", adminH.Metrics)
		adminG.GET("/scheduler", adminH.ListSchedulerTasks)
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	logger.Info("Server listening", zap.String("addr", addr))
	if err := r.Run(addr); err != nil {
		log.Fatalf("server: %v", err)
	}
}
