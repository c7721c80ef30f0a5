package config

import (
	"strings"

	"arbiter/internal/decision"
	"arbiter/internal/engine"
	"arbiter/internal/risk"
)

// Config 是 Arbiter 的主配置载体。
type Config struct {
	App      AppConfig      `toml:"app"`
	Engine   EngineConfig   `toml:"engine"`
	Store    StoreConfig    `toml:"store"`
	Profiles ProfilesConfig `toml:"profiles"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	HTTPAddr string `toml:"http_addr"`
	LogPath  string `toml:"log_path"`
}

// EngineConfig 引擎阈值。默认值即规格常量，允许按环境微调。
type EngineConfig struct {
	BaseSizePct    float64 `toml:"base_size_pct"`
	MinSizePct     float64 `toml:"min_size_pct"`
	MinLotShares   float64 `toml:"min_lot_shares"`
	VolumeLow      float64 `toml:"volume_low"`
	VolumeOK       float64 `toml:"volume_ok"`
	ReduceMajorPct float64 `toml:"reduce_major_pct"`
	ReduceMinorPct float64 `toml:"reduce_minor_pct"`
	SectorHighPct  float64 `toml:"sector_high_pct"`
	SectorWarnPct  float64 `toml:"sector_warn_pct"`
	SectorCapPct   float64 `toml:"sector_cap_pct"`
	DrawdownPct    float64 `toml:"drawdown_pct"`
	StaleDays      int     `toml:"stale_days"`
	TrialStaleDays int     `toml:"trial_stale_days"`
	Parallel       bool    `toml:"parallel"`
}

type StoreConfig struct {
	RunDBPath   string `toml:"run_db_path"`
	AuditDBPath string `toml:"audit_db_path"`
}

type ProfilesConfig struct {
	Path string `toml:"path"`
}

// EngineOptions 把配置映射为引擎参数。
func (e EngineConfig) EngineOptions() engine.Options {
	return engine.Options{
		Overlay: risk.OverlayParams{
			HighPct: e.SectorHighPct,
			WarnPct: e.SectorWarnPct,
			CapPct:  e.SectorCapPct,
		},
		Auditor: risk.AuditorParams{
			TrialStaleDays:   e.TrialStaleDays,
			DrawdownPct:      e.DrawdownPct,
			StaleDays:        e.StaleDays,
			VolumeRatioFloor: e.VolumeLow,
		},
		Cascade: decision.Params{
			BaseSizePct:  e.BaseSizePct,
			VolumeLow:    e.VolumeLow,
			VolumeOK:     e.VolumeOK,
			MinLotShares: e.MinLotShares,
			ReduceMajor:  e.ReduceMajorPct,
			ReduceMinor:  e.ReduceMinorPct,
			Liquidity:    decision.LiquidityParams{MinSizePct: e.MinSizePct},
		},
		Parallel: e.Parallel,
	}
}

// keySet 用于追踪配置文件中显式设置的字段路径。
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

// fieldDefault 描述单个字段的默认值设置规则。
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
