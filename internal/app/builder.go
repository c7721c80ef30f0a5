package app

import (
	"context"
	"fmt"
	"os"
	"strings"

	arbcfg "arbiter/internal/config"
	"arbiter/internal/engine"
	"arbiter/internal/logger"
	"arbiter/internal/profile"
	"arbiter/internal/store/auditlog"
	"arbiter/internal/store/runstore"
	livehttp "arbiter/internal/transport/http/live"
)

// AppBuilder 以函数字段方式注入各构建步骤，测试可替换任意一环。
type AppBuilder struct {
	cfg *arbcfg.Config

	profilesFn func(arbcfg.ProfilesConfig) (*profile.Registry, error)
	engineFn   func(*arbcfg.Config, *profile.Registry) *engine.Engine
	runStoreFn func(arbcfg.StoreConfig) (*runstore.Store, error)
	auditFn    func(arbcfg.StoreConfig) (*auditlog.Store, error)
	liveHTTPFn func(arbcfg.AppConfig, *engine.Engine, *runstore.Store, *auditlog.Store) (*livehttp.Server, error)
}

type AppBuilderOption func(*AppBuilder)

func NewAppBuilder(cfg *arbcfg.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:        cfg,
		profilesFn: buildProfileRegistry,
		engineFn:   buildEngine,
		runStoreFn: buildRunStore,
		auditFn:    buildAuditLog,
		liveHTTPFn: buildLiveHTTPServer,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

// Build 按依赖顺序组装 App。
func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	if b == nil || b.cfg == nil {
		return nil, fmt.Errorf("app builder requires config")
	}
	_ = ctx

	registry, err := b.profilesFn(b.cfg.Profiles)
	if err != nil {
		return nil, fmt.Errorf("profile registry 初始化失败: %w", err)
	}
	eng := b.engineFn(b.cfg, registry)

	runs, err := b.runStoreFn(b.cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("run store 初始化失败: %w", err)
	}
	audit, err := b.auditFn(b.cfg.Store)
	if err != nil {
		if runs != nil {
			_ = runs.Close()
		}
		return nil, fmt.Errorf("audit log 初始化失败: %w", err)
	}

	server, err := b.liveHTTPFn(b.cfg.App, eng, runs, audit)
	if err != nil {
		if runs != nil {
			_ = runs.Close()
		}
		if audit != nil {
			_ = audit.Close()
		}
		return nil, fmt.Errorf("live http server 初始化失败: %w", err)
	}

	return &App{
		cfg:      b.cfg,
		engine:   eng,
		profiles: registry,
		runs:     runs,
		audit:    audit,
		liveHTTP: server,
	}, nil
}

// buildProfileRegistry 读取画像文件；未配置或文件不存在时退回内置基线。
func buildProfileRegistry(cfg arbcfg.ProfilesConfig) (*profile.Registry, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, nil
	}
	if _, err := os.Stat(path); err != nil {
		logger.Warnf("画像文件 %s 不可用（%v），使用内置基线", path, err)
		return nil, nil
	}
	return profile.NewRegistry(path)
}

func buildEngine(cfg *arbcfg.Config, registry *profile.Registry) *engine.Engine {
	opts := cfg.Engine.EngineOptions()
	opts.Baseline = registry.Baseline()
	return engine.New(opts)
}

func buildRunStore(cfg arbcfg.StoreConfig) (*runstore.Store, error) {
	if strings.TrimSpace(cfg.RunDBPath) == "" {
		return nil, nil
	}
	return runstore.New(cfg.RunDBPath)
}

func buildAuditLog(cfg arbcfg.StoreConfig) (*auditlog.Store, error) {
	if strings.TrimSpace(cfg.AuditDBPath) == "" {
		return nil, nil
	}
	return auditlog.New(cfg.AuditDBPath)
}

func buildLiveHTTPServer(cfg arbcfg.AppConfig, eng *engine.Engine, runs *runstore.Store, audit *auditlog.Store) (*livehttp.Server, error) {
	return livehttp.NewServer(livehttp.ServerConfig{
		Addr:   cfg.HTTPAddr,
		Engine: eng,
		Runs:   runs,
		Audit:  audit,
	})
}

// WithProfileRegistry 覆盖画像注册表构建（测试用）。
func WithProfileRegistry(fn func(arbcfg.ProfilesConfig) (*profile.Registry, error)) AppBuilderOption {
	return func(b *AppBuilder) { b.profilesFn = fn }
}

// WithRunStore 覆盖 run store 构建（测试用）。
func WithRunStore(fn func(arbcfg.StoreConfig) (*runstore.Store, error)) AppBuilderOption {
	return func(b *AppBuilder) { b.runStoreFn = fn }
}

// WithAuditLog 覆盖审计流水构建（测试用）。
func WithAuditLog(fn func(arbcfg.StoreConfig) (*auditlog.Store, error)) AppBuilderOption {
	return func(b *AppBuilder) { b.auditFn = fn }
}
