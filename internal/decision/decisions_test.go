package decision

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"arbiter/internal/snapshot"
)

func TestCoerceRewritesUnknownAction(t *testing.T) {
	d := Decision{Symbol: "2330", Action: Action("DOUBLE_DOWN"), SizePct: 10, ReasonCode: "X"}
	changed := Coerce(&d)
	assert.True(t, changed)
	assert.Equal(t, ActionWatch, d.Action)
	assert.Equal(t, 0.0, d.SizePct)
	assert.Equal(t, ReasonEnumViolation, d.ReasonCode)
}

func TestCoerceKeepsValidActions(t *testing.T) {
	for _, a := range []Action{ActionBuy, ActionTrial, ActionHold, ActionWatch, ActionReduce, ActionSell, ActionIgnore} {
		d := Decision{Action: a, SizePct: 5, ReasonCode: "KEEP"}
		assert.False(t, Coerce(&d))
		assert.Equal(t, a, d.Action)
		assert.Equal(t, 5.0, d.SizePct)
	}
}

func TestIsMajorAlert(t *testing.T) {
	assert.True(t, IsMajorAlert("BREAK_SUPPORT"))
	assert.True(t, IsMajorAlert("dead_cross"))
	assert.True(t, IsMajorAlert(" LIMIT_DOWN "))
	assert.True(t, IsMajorAlert("VOLUME_COLLAPSE"))
	assert.False(t, IsMajorAlert("RSI_OVERBOUGHT"))
	assert.False(t, IsMajorAlert(""))
}

func TestInstitutionalConfirmed(t *testing.T) {
	base := snapshot.Institutional{Ready: true, Streak3: 3, Direction: "positive"}

	sym := &snapshot.SymbolRecord{Institutional: base}
	assert.True(t, institutionalConfirmed(sym))

	notReady := base
	notReady.Ready = false
	assert.False(t, institutionalConfirmed(&snapshot.SymbolRecord{Institutional: notReady}))

	shortStreak := base
	shortStreak.Streak3 = 2
	assert.False(t, institutionalConfirmed(&snapshot.SymbolRecord{Institutional: shortStreak}))

	negative := base
	negative.Direction = "negative"
	assert.False(t, institutionalConfirmed(&snapshot.SymbolRecord{Institutional: negative}))
}

func TestBuildRationaleThreeParts(t *testing.T) {
	sym := &snapshot.SymbolRecord{
		Technical: snapshot.Technical{
			Bias: 2.5, VolumeRatio: 1.3, PositiveSignals: 3,
			Tag: snapshot.TagBreakoutConfirmed, Alerts: []string{"RSI_HIGH"},
		},
		Institutional: snapshot.Institutional{Ready: true, Streak3: 4, Direction: "positive"},
		Structural:    snapshot.Structural{OperatingMargin: 42, SectorBenchmark: 30, RevenueGrowth: 12, Sector: "半导体"},
	}
	r := buildRationale(sym)
	assert.Contains(t, r.Technical, "量比 1.30")
	assert.Contains(t, r.Technical, "RSI_HIGH")
	assert.Contains(t, r.Institutional, "三日连买 4 天")
	assert.Contains(t, r.Structural, "板块基准 30.0%")
}
