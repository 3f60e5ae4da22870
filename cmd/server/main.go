// PharmaShift 药房排班引擎服务
// 主程序入口

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/paiban/pharmashift/internal/config"
	"github.com/paiban/pharmashift/internal/database"
	"github.com/paiban/pharmashift/internal/handler"
	"github.com/paiban/pharmashift/internal/metrics"
	"github.com/paiban/pharmashift/internal/middleware"
	"github.com/paiban/pharmashift/internal/repository"
	"github.com/paiban/pharmashift/pkg/logger"
	"github.com/paiban/pharmashift/pkg/scheduler"
)

// 构建信息（通过 ldflags 注入）
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	logger.Init(logger.Config{
		Level:      cfg.App.LogLevel,
		Format:     cfg.App.LogFormat,
		Output:     "stdout",
		TimeFormat: time.RFC3339,
	})

	logger.Info().
		Str("version", Version).
		Str("build_time", BuildTime).
		Str("git_commit", GitCommit).
		Str("env", cfg.App.Env).
		Msg("PharmaShift 排班引擎启动")

	// 数据库可选；未启用时只计算不保存
	var (
		store  repository.RunStore
		pinger handler.Pinger
	)
	if cfg.Database.Enabled {
		db, err := database.New(&cfg.Database)
		if err != nil {
			logger.Fatal().Err(err).Msg("连接数据库失败")
		}
		defer db.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err = db.Migrate(ctx)
		cancel()
		if err != nil {
			logger.Fatal().Err(err).Msg("数据库迁移失败")
		}

		store = repository.NewRunRepository(db)
		pinger = db
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      newRouter(cfg, store, pinger),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.API.Timeout + 5*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// 启动服务器（非阻塞）
	go func() {
		logger.Info().
			Int("port", cfg.App.Port).
			Bool("database", cfg.Database.Enabled).
			Msg("服务器启动")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("服务器启动失败")
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("正在关闭服务器...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("服务器关闭失败")
		return
	}

	logger.Info().Msg("服务器已关闭")
}

// newRouter 组装路由和中间件
// 中间件执行顺序：requestID -> recoverer -> logging -> rateLimit -> cors -> bodyLimit -> handler
func newRouter(cfg *config.Config, store repository.RunStore, pinger handler.Pinger) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Logging(logger.WithComponent("http")))
	if cfg.API.RateLimit > 0 {
		r.Use(middleware.RateLimit(middleware.NewRateLimiter(float64(cfg.API.RateLimit))))
	}
	r.Use(middleware.CORS)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.BodyLimit(cfg.API.MaxRequestSize))
	r.Use(chimw.Timeout(cfg.API.Timeout))

	health := handler.NewHealthHandler(pinger, handler.BuildInfo{
		Version:   Version,
		BuildTime: BuildTime,
		GitCommit: GitCommit,
	})
	r.Get("/health", health.Health)
	r.Get("/version", health.Version)

	if cfg.Metrics.Enabled {
		r.Method(http.MethodGet, cfg.Metrics.Path, metrics.Handler())
	}

	schedule := handler.NewScheduleHandler(scheduler.NewEngine(), store, cfg.Scheduler.Algorithm)
	r.Route("/api/v1", schedule.RegisterRoutes)

	return r
}
