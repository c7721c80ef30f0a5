package app

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	arbcfg "arbiter/internal/config"
	"arbiter/internal/profile"
	"arbiter/internal/store/auditlog"
	"arbiter/internal/store/runstore"
)

func testConfig(t *testing.T) *arbcfg.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := arbcfg.Default()
	cfg.Store.RunDBPath = filepath.Join(dir, "runs.db")
	cfg.Store.AuditDBPath = filepath.Join(dir, "audit.db")
	cfg.Profiles.Path = ""
	return cfg
}

func TestBuildDefault(t *testing.T) {
	application, err := NewAppBuilder(testConfig(t)).Build(context.Background())
	require.NoError(t, err)
	defer application.Close()

	assert.NotNil(t, application.Engine())
	assert.NotNil(t, application.runs)
	assert.NotNil(t, application.audit)
	assert.NotNil(t, application.liveHTTP)
	// 未配置画像文件时不建注册表，引擎退回内置基线。
	assert.Nil(t, application.profiles)
}

func TestBuildWithoutStores(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store.RunDBPath = ""
	cfg.Store.AuditDBPath = ""

	application, err := NewAppBuilder(cfg).Build(context.Background())
	require.NoError(t, err)
	defer application.Close()

	assert.Nil(t, application.runs)
	assert.Nil(t, application.audit)
	assert.NotNil(t, application.liveHTTP)
}

func TestBuildProfileRegistryMissingFileFallsBack(t *testing.T) {
	cfg := testConfig(t)
	cfg.Profiles.Path = filepath.Join(t.TempDir(), "no-such-profiles.yaml")

	application, err := NewAppBuilder(cfg).Build(context.Background())
	require.NoError(t, err)
	defer application.Close()
	assert.Nil(t, application.profiles)
}

func TestBuildFailureClosesEarlierStores(t *testing.T) {
	var built *runstore.Store
	builder := NewAppBuilder(testConfig(t),
		WithRunStore(func(cfg arbcfg.StoreConfig) (*runstore.Store, error) {
			s, err := runstore.New(cfg.RunDBPath)
			built = s
			return s, err
		}),
		WithAuditLog(func(arbcfg.StoreConfig) (*auditlog.Store, error) {
			return nil, fmt.Errorf("boom")
		}),
	)

	_, err := builder.Build(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "audit log")
	require.NotNil(t, built)
	// 已建 run store 在失败路径上被回收，重复 Close 无害。
	_ = built.Close()
}

func TestBuildRequiresConfig(t *testing.T) {
	_, err := NewAppBuilder(nil).Build(context.Background())
	assert.Error(t, err)

	_, err = NewApp(nil)
	assert.Error(t, err)
}

func TestBuildWithProfileRegistryOverride(t *testing.T) {
	registry := (*profile.Registry)(nil)
	application, err := NewAppBuilder(testConfig(t),
		WithProfileRegistry(func(arbcfg.ProfilesConfig) (*profile.Registry, error) {
			return registry, nil
		}),
	).Build(context.Background())
	require.NoError(t, err)
	defer application.Close()
	assert.NotNil(t, application.Engine())
}
