package config

import "fmt"

// validate 对配置进行基础校验。
func validate(c *Config) error {
	if err := c.Engine.validate(); err != nil {
		return err
	}
	return nil
}

func (e *EngineConfig) validate() error {
	if e.BaseSizePct <= 0 || e.BaseSizePct > 100 {
		return fmt.Errorf("engine.base_size_pct must be in (0,100]")
	}
	if e.MinSizePct <= 0 || e.MinSizePct > e.BaseSizePct {
		return fmt.Errorf("engine.min_size_pct must be in (0, base_size_pct]")
	}
	if e.MinLotShares <= 0 {
		return fmt.Errorf("engine.min_lot_shares must be > 0")
	}
	if e.VolumeLow <= 0 || e.VolumeLow >= e.VolumeOK {
		return fmt.Errorf("engine.volume_low must be > 0 and < engine.volume_ok")
	}
	if e.SectorWarnPct <= 0 || e.SectorWarnPct > e.SectorHighPct {
		return fmt.Errorf("engine.sector_warn_pct must be in (0, sector_high_pct]")
	}
	if e.SectorCapPct <= 0 {
		return fmt.Errorf("engine.sector_cap_pct must be > 0")
	}
	if e.DrawdownPct <= 0 || e.DrawdownPct >= 100 {
		return fmt.Errorf("engine.drawdown_pct must be in (0,100)")
	}
	if e.StaleDays <= 0 || e.TrialStaleDays <= 0 {
		return fmt.Errorf("engine stale day thresholds must be > 0")
	}
	return nil
}
