package config

import "strings"

// 默认值常量
const (
	defaultAppEnv      = "dev"
	defaultAppLogLevel = "info"
	defaultAppHTTPAddr = ":9991"
	defaultAppLogPath  = ""

	defaultBaseSizePct    = 5.0
	defaultMinSizePct     = 2.0
	defaultMinLotShares   = 1000.0
	defaultVolumeLow      = 0.8
	defaultVolumeOK       = 1.0
	defaultReduceMajorPct = 10.0
	defaultReduceMinorPct = 5.0
	defaultSectorHighPct  = 40.0
	defaultSectorWarnPct  = 35.0
	defaultSectorCapPct   = 2.0
	defaultDrawdownPct    = 15.0
	defaultStaleDays      = 15
	defaultTrialStaleDays = 5

	defaultRunDBPath   = "data/runs.db"
	defaultAuditDBPath = "data/audit.db"
)

// applyDefaults 为所有子配置应用默认值。
func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Engine.applyDefaults(keys)
	c.Store.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
		stringFieldDefault("app.log_path", &a.LogPath, defaultAppLogPath),
	)
}

func (e *EngineConfig) applyDefaults(keys keySet) {
	if e == nil {
		return
	}
	applyFieldDefaults(keys,
		floatFieldDefault("engine.base_size_pct", &e.BaseSizePct, defaultBaseSizePct),
		floatFieldDefault("engine.min_size_pct", &e.MinSizePct, defaultMinSizePct),
		floatFieldDefault("engine.min_lot_shares", &e.MinLotShares, defaultMinLotShares),
		floatFieldDefault("engine.volume_low", &e.VolumeLow, defaultVolumeLow),
		floatFieldDefault("engine.volume_ok", &e.VolumeOK, defaultVolumeOK),
		floatFieldDefault("engine.reduce_major_pct", &e.ReduceMajorPct, defaultReduceMajorPct),
		floatFieldDefault("engine.reduce_minor_pct", &e.ReduceMinorPct, defaultReduceMinorPct),
		floatFieldDefault("engine.sector_high_pct", &e.SectorHighPct, defaultSectorHighPct),
		floatFieldDefault("engine.sector_warn_pct", &e.SectorWarnPct, defaultSectorWarnPct),
		floatFieldDefault("engine.sector_cap_pct", &e.SectorCapPct, defaultSectorCapPct),
		floatFieldDefault("engine.drawdown_pct", &e.DrawdownPct, defaultDrawdownPct),
		fieldDefault{
			key:   "engine.stale_days",
			need:  func() bool { return e.StaleDays <= 0 },
			apply: func() { e.StaleDays = defaultStaleDays },
		},
		fieldDefault{
			key:   "engine.trial_stale_days",
			need:  func() bool { return e.TrialStaleDays <= 0 },
			apply: func() { e.TrialStaleDays = defaultTrialStaleDays },
		},
	)
}

func (s *StoreConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("store.run_db_path", &s.RunDBPath, defaultRunDBPath),
		stringFieldDefault("store.audit_db_path", &s.AuditDBPath, defaultAuditDBPath),
	)
}

// Helper functions

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func floatFieldDefault(key string, target *float64, def float64) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil && *target == 0 },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}
