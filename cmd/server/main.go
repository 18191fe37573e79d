// Sloty 评估名额分配服务
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

	"github.com/goccy/go-json"

	"github.com/bpp/sloty/internal/batch"
	"github.com/bpp/sloty/internal/config"
	"github.com/bpp/sloty/internal/database"
	"github.com/bpp/sloty/internal/handler"
	"github.com/bpp/sloty/internal/metrics"
	"github.com/bpp/sloty/internal/middleware"
	"github.com/bpp/sloty/internal/repository"
	"github.com/bpp/sloty/pkg/allocation/checkpoint"
	"github.com/bpp/sloty/pkg/errors"
	"github.com/bpp/sloty/pkg/logger"
)

// 构建信息（通过 ldflags 注入）
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if err := run(); err != nil {
		logger.Error().Err(err).Msg("服务异常退出")
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		return err
	}
	logger.Init(cfg.Log)

	fmt.Printf("Sloty 名额分配引擎 v%s\n", Version)
	fmt.Printf("Build: %s (%s)\n", BuildTime, GitCommit)
	fmt.Println()

	reg := metrics.Init(cfg.Metrics.Namespace)

	var (
		db     *database.DB
		loader handler.SnapshotLoader
	)
	if cfg.Database.Enabled {
		db, err = database.New(ctx, &cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := repository.EnsureSchema(ctx, db); err != nil {
			return err
		}
		loader = repository.NewSnapshotRepository(db)
	}

	store, err := newCheckpointStore(ctx, cfg, db)
	if err != nil {
		return err
	}

	runner := batch.NewRunner(cfg.Engine, cfg.Checkpoint, store, reg)
	allocHandler := handler.NewAllocationHandler(runner, loader)

	mux := http.NewServeMux()

	// ========================================
	// 系统端点
	// ========================================

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		status, code := "ok", http.StatusOK
		if db != nil {
			if err := db.Health(r.Context()); err != nil {
				logger.WithContext(r.Context()).Warn().Err(err).Msg("健康检查失败")
				status, code = "degraded", http.StatusServiceUnavailable
			}
		}
		writeJSON(w, code, map[string]interface{}{
			"status":   status,
			"service":  cfg.App.Name,
			"database": db != nil,
		})
	})

	mux.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"version":    Version,
			"build_time": BuildTime,
			"git_commit": GitCommit,
		})
	})

	// ========================================
	// API v1 端点
	// ========================================

	mux.HandleFunc("/api/v1/allocation/run", allocHandler.Run)
	mux.HandleFunc("/api/v1/allocation/batch", allocHandler.Batch)
	mux.HandleFunc("/api/v1/allocation/strategies", allocHandler.Strategies)
	mux.HandleFunc("/api/v1/allocation/rules", allocHandler.Rules)

	if cfg.Metrics.Enabled {
		mux.Handle(cfg.Metrics.Path, reg.Handler())
	}

	// ========================================
	// 中间件
	// ========================================

	limiter := middleware.NewRateLimiter(cfg.API.RateLimit, cfg.API.Burst)
	go limiter.Run(ctx, time.Minute)

	var h http.Handler = mux
	if cfg.API.Timeout > 0 {
		h = http.TimeoutHandler(h, cfg.API.Timeout, `{"success":false,"error":{"code":"TIMEOUT","message":"请求超时"}}`)
	}
	h = middleware.Chain(h,
		middleware.RequestIDMiddleware,
		middleware.LoggingMiddleware,
		middleware.RecoveryMiddleware,
		middleware.SecurityHeadersMiddleware,
		middleware.CORSMiddleware,
		limiter.Middleware,
		middleware.BodyLimitMiddleware(cfg.API.MaxBodyBytes),
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      h,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: writeTimeout(cfg.API.Timeout),
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Int("port", cfg.App.Port).
			Str("env", cfg.App.Env).
			Str("version", Version).
			Str("strategy", cfg.Engine.Strategy).
			Bool("database", db != nil).
			Bool("checkpoint", store != nil).
			Msg("服务器启动")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("服务器启动失败")
			return err
		}
	case <-ctx.Done():
	}

	logger.Info().Msg("正在关闭服务器...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.API.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("服务器关闭失败")
		return err
	}

	logger.Info().Msg("服务器已关闭")
	return nil
}

// newCheckpointStore 按配置选择断点存储，未启用时返回 nil。postgres 存储启动时先清理旧断点
func newCheckpointStore(ctx context.Context, cfg *config.Config, db *database.DB) (checkpoint.Store, error) {
	if !cfg.Checkpoint.Enabled {
		return nil, nil
	}
	switch cfg.Checkpoint.Backend {
	case "postgres":
		if db == nil {
			return nil, errors.Configuration("断点存储使用 postgres 时必须启用数据库")
		}
		repo := repository.NewCheckpointRepository(db, cfg.Checkpoint.Keep)
		n, err := repo.Prune(ctx, cfg.Checkpoint.Keep)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			logger.Info().Int64("deleted", n).Int("keep", cfg.Checkpoint.Keep).Msg("已清理旧断点")
		}
		return repo, nil
	default:
		fs, err := checkpoint.NewFileStore(cfg.Checkpoint.Dir)
		if err != nil {
			return nil, err
		}
		return fs, nil
	}
}

// writeTimeout 写超时需覆盖请求处理超时
func writeTimeout(api time.Duration) time.Duration {
	if api <= 0 {
		return 0
	}
	return api + 10*time.Second
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
