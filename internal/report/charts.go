// Package report renders calibration results: HTML charts of the sweeps and
// a PNG plot of the flooded area against the hydrological series.
package report

import (
	"cmp"
	"fmt"
	"io"
	"slices"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/yyyoichi/floodsar/internal/store"
)

// maxScatterPoints bounds the pixels drawn per chart; larger fits are strided.
const maxScatterPoints = 20000

// undefined is how echarts marks a missing value.
const undefined = "-"

func coefficient(e store.Evaluation) any {
	if !e.Defined {
		return undefined
	}
	return e.Coefficient
}

// ThresholdChart renders the coefficient of every threshold evaluation, one
// line per polarization.
func ThresholdChart(w io.Writer, evals []store.Evaluation) error {
	byPol := make(map[string][]opts.LineData)
	for _, e := range evals {
		if e.Kind != store.KindThreshold {
			continue
		}
		byPol[e.Polarization] = append(byPol[e.Polarization], opts.LineData{
			Value: []any{e.Threshold, coefficient(e)},
			Name:  fmt.Sprintf("%s threshold=%g areas=%v", e.Polarization, e.Threshold, e.Areas),
		})
	}
	if len(byPol) == 0 {
		return fmt.Errorf("no threshold evaluations")
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Threshold sweep",
			Subtitle: "Correlation of flooded area with the hydrological series",
		}),
		charts.WithXAxisOpts(opts.XAxis{Name: "threshold", Type: "value"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "coefficient", Type: "value", Min: -1, Max: 1}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "5%"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "item"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", Start: 0, End: 100}),
	)
	pols := make([]string, 0, len(byPol))
	for pol := range byPol {
		pols = append(pols, pol)
	}
	slices.Sort(pols)
	for _, pol := range pols {
		line.AddSeries(pol, byPol[pol])
	}
	return line.Render(w)
}

// ClusterHeatmap renders the coefficient of every (k, m) evaluation.
func ClusterHeatmap(w io.Writer, evals []store.Evaluation) error {
	var cells []store.Evaluation
	maxK := 0
	for _, e := range evals {
		if e.Kind == store.KindCluster {
			cells = append(cells, e)
			maxK = max(maxK, e.K)
		}
	}
	if len(cells) == 0 {
		return fmt.Errorf("no cluster evaluations")
	}
	slices.SortFunc(cells, func(a, b store.Evaluation) int {
		return cmp.Or(cmp.Compare(a.K, b.K), cmp.Compare(a.M, b.M))
	})

	var ks []int
	for _, e := range cells {
		if len(ks) == 0 || ks[len(ks)-1] != e.K {
			ks = append(ks, e.K)
		}
	}
	xLabels := make([]string, len(ks))
	col := make(map[int]int, len(ks))
	for i, k := range ks {
		xLabels[i] = "k=" + strconv.Itoa(k)
		col[k] = i
	}
	yLabels := make([]string, maxK-1)
	for m := 1; m < maxK; m++ {
		yLabels[m-1] = "m=" + strconv.Itoa(m)
	}

	data := make([]opts.HeatMapData, 0, len(cells))
	for _, e := range cells {
		data = append(data, opts.HeatMapData{
			Value: [3]any{col[e.K], e.M - 1, coefficient(e)},
			Name:  fmt.Sprintf("k=%d m=%d", e.K, e.M),
		})
	}

	heatmap := charts.NewHeatMap()
	heatmap.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Cluster sweep",
			Subtitle: "Coefficient per class count k and flood class count m",
		}),
		charts.WithXAxisOpts(opts.XAxis{
			Name:      "k",
			Type:      "category",
			Data:      xLabels,
			SplitArea: &opts.SplitArea{Show: opts.Bool(true)},
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Name:      "m",
			Type:      "category",
			Data:      yLabels,
			SplitArea: &opts.SplitArea{Show: opts.Bool(true)},
		}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Calculable: opts.Bool(true),
			Min:        -1,
			Max:        1,
			Range:      []float32{-1, 1},
			InRange:    &opts.VisualMapInRange{Color: []string{"#313695", "#74add1", "#fee090", "#f46d43", "#a50026"}},
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	heatmap.AddSeries("coefficient", data)
	return heatmap.Render(w)
}

// ClusterScatter renders the pixels of a fit in the VH/VV plane, one series
// per class, together with the centroids. vh and vv may be nil to draw only
// the centroids; otherwise they must be aligned with fit.Labels.
func ClusterScatter(w io.Writer, fit store.Fit, vh, vv []float64) error {
	if vh != nil && (len(vh) != len(fit.Labels) || len(vv) != len(fit.Labels)) {
		return fmt.Errorf("%d labels for %d VH and %d VV pixels", len(fit.Labels), len(vh), len(vv))
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("Clusters k=%d", fit.K),
			Subtitle: "Backscatter of the sample pixels",
		}),
		charts.WithXAxisOpts(opts.XAxis{Name: "VH", Type: "value"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "VV", Type: "value"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "5%"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "item"}),
	)

	if vh != nil {
		stride := max(1, len(vh)/maxScatterPoints)
		classes := make([][]opts.ScatterData, fit.K)
		for i := 0; i < len(vh); i += stride {
			l := fit.Labels[i]
			if l < 1 || l > fit.K {
				continue
			}
			classes[l-1] = append(classes[l-1], opts.ScatterData{Value: []any{vh[i], vv[i]}})
		}
		for i, data := range classes {
			scatter.AddSeries(fmt.Sprintf("class %d", i+1), data,
				charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 3}))
		}
	}

	centroids := make([]opts.ScatterData, 0, len(fit.Centroids))
	for _, c := range fit.Centroids {
		if !c.Defined() {
			continue
		}
		centroids = append(centroids, opts.ScatterData{
			Value:  []any{c.VH, c.VV},
			Name:   fmt.Sprintf("class %d", c.Label),
			Symbol: "diamond",
		})
	}
	scatter.AddSeries("centroids", centroids,
		charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 12}))
	return scatter.Render(w)
}
