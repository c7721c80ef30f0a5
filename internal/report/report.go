package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"

	"arbiter/internal/decision"
	"arbiter/internal/engine"
	"arbiter/internal/risk"
	"arbiter/internal/snapshot"
)

// 中文说明：
// 评估结果可视化。按账户输出行业敞口柱状图与决策分布饼图，渲染为
// 单页 HTML，直接通过 HTTP 返回给浏览器查看。

const (
	colorBackground  = "#060c1b"
	colorTextPrimary = "#eceff4"
	colorTextMuted   = "#9ca3af"

	chartWidthPx  = 960
	chartHeightPx = 420
)

// Render 把一次评估结果渲染为 HTML 报告。
func Render(w io.Writer, res *engine.Result, snap *snapshot.Snapshot) error {
	if res == nil {
		return fmt.Errorf("report: result 为空")
	}
	page := components.NewPage()
	page.SetPageTitle(fmt.Sprintf("Arbitration Report %s", res.Timestamp.Format("2006-01-02 15:04")))

	accountIDs := make([]string, 0, len(res.Accounts))
	for id := range res.Accounts {
		accountIDs = append(accountIDs, id)
	}
	sort.Strings(accountIDs)

	for _, id := range accountIDs {
		acct := res.Accounts[id]
		page.AddCharts(decisionPie(id, acct.Decisions))
		if snap != nil {
			if bar := exposureBar(id, snap); bar != nil {
				page.AddCharts(bar)
			}
		}
	}
	if len(page.Charts) == 0 {
		return fmt.Errorf("report: 无可渲染账户")
	}
	return page.Render(w)
}

// decisionPie 账户的决策分布。
func decisionPie(accountID string, decisions []decision.Decision) *charts.Pie {
	counts := make(map[decision.Action]int)
	for _, d := range decisions {
		counts[d.Action]++
	}
	actions := make([]decision.Action, 0, len(counts))
	for a := range counts {
		actions = append(actions, a)
	}
	sort.Slice(actions, func(i, j int) bool { return actions[i] < actions[j] })

	items := make([]opts.PieData, 0, len(actions))
	for _, a := range actions {
		items = append(items, opts.PieData{Name: string(a), Value: counts[a]})
	}

	pie := charts.NewPie()
	pie.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme:           types.ThemeWesteros,
			Width:           fmt.Sprintf("%dpx", chartWidthPx),
			Height:          fmt.Sprintf("%dpx", chartHeightPx),
			BackgroundColor: colorBackground,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:      fmt.Sprintf("决策分布 %s", accountID),
			Subtitle:   fmt.Sprintf("共 %d 个标的", len(decisions)),
			Left:       "left",
			TitleStyle: &opts.TextStyle{Color: colorTextPrimary, FontSize: 18},
			SubtitleStyle: &opts.TextStyle{
				Color: colorTextMuted,
			},
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), TextStyle: &opts.TextStyle{Color: colorTextPrimary}}),
	)
	pie.AddSeries(fmt.Sprintf("decisions_%s", accountID), items).
		SetSeriesOptions(
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Formatter: "{b}: {c}"}),
			charts.WithPieChartOpts(opts.PieChart{Radius: []string{"35%", "70%"}}),
		)
	return pie
}

// exposureBar 账户的行业敞口占比。
func exposureBar(accountID string, snap *snapshot.Snapshot) *charts.Bar {
	var acct *snapshot.Account
	for _, a := range snap.Accounts {
		if a.ID == accountID {
			acct = a
			break
		}
	}
	if acct == nil {
		return nil
	}
	overlay := risk.SectorExposure(acct, risk.DefaultOverlayParams())
	if overlay.Skipped || len(overlay.Exposures) == 0 {
		return nil
	}
	sectors := make([]string, 0, len(overlay.Exposures))
	for sector := range overlay.Exposures {
		sectors = append(sectors, sector)
	}
	sort.Strings(sectors)

	values := make([]opts.BarData, 0, len(sectors))
	for _, sector := range sectors {
		values = append(values, opts.BarData{Value: overlay.Exposures[sector]})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme:           types.ThemeWesteros,
			Width:           fmt.Sprintf("%dpx", chartWidthPx),
			Height:          fmt.Sprintf("%dpx", chartHeightPx),
			BackgroundColor: colorBackground,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:      fmt.Sprintf("行业敞口 %s", accountID),
			Subtitle:   exposureSubtitle(overlay),
			Left:       "left",
			TitleStyle: &opts.TextStyle{Color: colorTextPrimary, FontSize: 18},
			SubtitleStyle: &opts.TextStyle{
				Color: colorTextMuted,
			},
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{
			Type:      "category",
			AxisLabel: &opts.AxisLabel{Color: colorTextMuted},
		}),
		charts.WithYAxisOpts(opts.YAxis{
			AxisLabel: &opts.AxisLabel{Color: colorTextMuted, Formatter: "{value}%"},
		}),
	)
	bar.SetXAxis(sectors)
	bar.AddSeries("敞口占比", values)
	return bar
}

func exposureSubtitle(overlay risk.OverlayResult) string {
	if overlay.TopSector == "" {
		return ""
	}
	parts := []string{fmt.Sprintf("最高 %s %.1f%%", overlay.TopSector, overlay.TopPct)}
	if overlay.CapPct != nil {
		parts = append(parts, fmt.Sprintf("新仓上限 %.1f%%", *overlay.CapPct))
	}
	return strings.Join(parts, "，")
}

