package floodsar_test

import (
	"context"
	"fmt"

	"github.com/yyyoichi/floodsar"
)

func Example_thresholds() {
	// Three acquisitions of four pixels; the gauge rises from 1 to 3.
	series, err := floodsar.NewSeries(floodsar.VH,
		[]string{"20190101", "20190201", "20190301"},
		[]float64{1, 2, 3},
		[][]float64{
			{0.05, 0.5, 0.5, 0.5},
			{0.05, 0.15, 0.5, 0.5},
			{0.05, 0.15, 0.25, 0.5},
		})
	if err != nil {
		fmt.Printf("Error building series: %v\n", err)
		return
	}

	thresholds, err := floodsar.ThresholdRange(0.1, 0.3, 0.1)
	if err != nil {
		fmt.Printf("Error building thresholds: %v\n", err)
		return
	}

	out, err := floodsar.SweepThresholds(context.Background(), series, thresholds, floodsar.WithWorkers(2))
	if err != nil {
		fmt.Printf("Error sweeping thresholds: %v\n", err)
		return
	}

	fmt.Printf("threshold=%.2f coefficient=%.2f areas=%v\n", out.Best.Params.Threshold, out.Best.Coefficient, out.Best.Areas)
	for _, d := range out.Decisions {
		fmt.Println(d)
	}

	// Output:
	// threshold=0.30 coefficient=1.00 areas=[1 2 3]
	// [true false false false]
	// [true true false false]
	// [true true true false]
}
