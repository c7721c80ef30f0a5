package app

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	arbcfg "arbiter/internal/config"
	"arbiter/internal/engine"
	"arbiter/internal/logger"
	"arbiter/internal/profile"
	"arbiter/internal/store/auditlog"
	"arbiter/internal/store/runstore"
	livehttp "arbiter/internal/transport/http/live"
)

// App 负责应用级编排：加载配置→初始化依赖→启动 HTTP 服务。
type App struct {
	cfg      *arbcfg.Config
	engine   *engine.Engine
	profiles *profile.Registry
	runs     *runstore.Store
	audit    *auditlog.Store
	liveHTTP *livehttp.Server
}

// NewApp 根据配置构建应用对象（不启动）。
func NewApp(cfg *arbcfg.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(context.Background(), cfg)
}

// Engine 暴露仲裁引擎（单次评估模式与测试用）。
func (a *App) Engine() *engine.Engine {
	if a == nil {
		return nil
	}
	return a.engine
}

// Run 启动 HTTP 服务，直到 ctx 取消。
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	if a.liveHTTP == nil {
		return fmt.Errorf("live http server not initialized")
	}
	defer a.Close()

	logger.Infof("Arbiter 启动，监听 %s", a.liveHTTP.Addr())
	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := a.liveHTTP.Start(ctx); err != nil {
			return fmt.Errorf("live http server error: %w", err)
		}
		return nil
	})
	return group.Wait()
}

// Close 释放存储资源。
func (a *App) Close() {
	if a == nil {
		return
	}
	if a.runs != nil {
		if err := a.runs.Close(); err != nil {
			logger.Warnf("run store 关闭失败: %v", err)
		}
	}
	if a.audit != nil {
		if err := a.audit.Close(); err != nil {
			logger.Warnf("audit log 关闭失败: %v", err)
		}
	}
}
