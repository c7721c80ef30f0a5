package profile

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"arbiter/internal/logger"
	"arbiter/internal/snapshot"
)

// 中文说明：
// 风险画像注册表。账户缺省的"命名保守基线"从这里解析：画像定义放在
// YAML 文件里，带 jsonschema 校验与热更新；未配置文件时退回内置基线。

// FileConfig 映射 risk_profiles。
type FileConfig struct {
	RiskProfiles map[string]Profile `yaml:"risk_profiles"`
}

// Profile 单个命名风险画像。
type Profile struct {
	MaxPositionPct  float64 `yaml:"max_position_pct" json:"max_position_pct"`
	MaxTradeRiskPct float64 `yaml:"max_trade_risk_pct" json:"max_trade_risk_pct"`
	TrialEnabled    bool    `yaml:"trial_enabled" json:"trial_enabled"`
	MinCashFloorPct float64 `yaml:"min_cash_floor_pct" json:"min_cash_floor_pct"`
}

// Snapshot 公开的画像快照。
type Snapshot struct {
	Version  int64
	LoadedAt time.Time
	Profiles map[string]Profile
}

// ChangeListener 在 registry 重载时触发。
type ChangeListener func(Snapshot)

const profileSchema = `{
	"type": "object",
	"properties": {
		"max_position_pct":  {"type": "number", "minimum": 0, "maximum": 100},
		"max_trade_risk_pct": {"type": "number", "minimum": 0, "maximum": 100},
		"trial_enabled":     {"type": "boolean"},
		"min_cash_floor_pct": {"type": "number", "minimum": 0, "maximum": 100}
	},
	"required": ["max_position_pct", "max_trade_risk_pct"]
}`

var compiledSchema = jsonschema.MustCompileString("profile.json", profileSchema)

// Registry 管理命名风险画像。
type Registry struct {
	path string
	v    *viper.Viper

	mu        sync.RWMutex
	snapshot  Snapshot
	listeners []ChangeListener
}

// NewRegistry 读取画像文件并监听更新。
func NewRegistry(path string) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("profile registry requires path")
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read profile config failed: %w", err)
	}
	r := &Registry{path: path, v: v}
	if err := r.reload(); err != nil {
		return nil, err
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		if err := r.reload(); err != nil {
			logger.Errorf("profile reload failed: %v", err)
			return
		}
		r.notifyListeners()
	})
	v.WatchConfig()
	return r, nil
}

func (r *Registry) reload() error {
	raw, err := os.ReadFile(r.path)
	if err != nil {
		return err
	}
	var cfg FileConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return fmt.Errorf("parse profile yaml failed: %w", err)
	}
	for name, prof := range cfg.RiskProfiles {
		if err := validateProfile(prof); err != nil {
			return fmt.Errorf("profile %q invalid: %w", name, err)
		}
	}
	r.mu.Lock()
	r.snapshot = Snapshot{
		Version:  r.snapshot.Version + 1,
		LoadedAt: time.Now(),
		Profiles: cfg.RiskProfiles,
	}
	r.mu.Unlock()
	logger.Infof("风险画像已加载：%d 个（%s）", len(cfg.RiskProfiles), r.path)
	return nil
}

func validateProfile(p Profile) error {
	doc := map[string]interface{}{
		"max_position_pct":   p.MaxPositionPct,
		"max_trade_risk_pct": p.MaxTradeRiskPct,
		"trial_enabled":      p.TrialEnabled,
		"min_cash_floor_pct": p.MinCashFloorPct,
	}
	return compiledSchema.Validate(doc)
}

// Snapshot 返回当前画像集。
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneSnapshot(r.snapshot)
}

// Get 返回指定名字的画像。
func (r *Registry) Get(name string) (Profile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.snapshot.Profiles[strings.TrimSpace(name)]
	return p, ok
}

// Baseline 解析缺省基线：优先文件里的同名画像，否则内置保守值。
func (r *Registry) Baseline() snapshot.RiskProfile {
	if r != nil {
		if p, ok := r.Get(snapshot.BaselineProfileName); ok {
			return snapshot.RiskProfile{
				Name:            snapshot.BaselineProfileName,
				MaxPositionPct:  p.MaxPositionPct,
				MaxTradeRiskPct: p.MaxTradeRiskPct,
				TrialEnabled:    p.TrialEnabled,
				MinCashFloorPct: p.MinCashFloorPct,
			}
		}
	}
	return snapshot.BaselineProfile()
}

// Names 返回已加载的画像名（排序后）。
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.snapshot.Profiles))
	for name := range r.snapshot.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// OnChange 注册重载回调。
func (r *Registry) OnChange(fn ChangeListener) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	r.listeners = append(r.listeners, fn)
	r.mu.Unlock()
}

func (r *Registry) notifyListeners() {
	r.mu.RLock()
	listeners := append([]ChangeListener(nil), r.listeners...)
	snap := cloneSnapshot(r.snapshot)
	r.mu.RUnlock()
	for _, fn := range listeners {
		fn(snap)
	}
}

func cloneSnapshot(s Snapshot) Snapshot {
	out := Snapshot{Version: s.Version, LoadedAt: s.LoadedAt}
	if s.Profiles != nil {
		out.Profiles = make(map[string]Profile, len(s.Profiles))
		for k, v := range s.Profiles {
			out.Profiles[k] = v
		}
	}
	return out
}
