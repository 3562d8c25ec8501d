package montecarlo

import (
	"fmt"

	"github.com/montanaflynn/stats"

	"github.com/alejandrodnm/phantomfill/internal/domain"
)

// summarize pliega los reports por run en un MonteCarloSummary.
// Los percentiles usan nearest-rank sobre una copia ordenada, así que el
// resultado no depende del orden en que terminaron los runs.
func summarize(reports []domain.Report, percentiles []float64) (domain.MonteCarloSummary, error) {
	if len(reports) == 0 {
		return domain.MonteCarloSummary{}, fmt.Errorf("montecarlo.summarize: no reports: %w", domain.ErrDataExhausted)
	}

	naive := reports[0].NaiveTotalPnL
	totals := make(stats.Float64Data, len(reports))
	fillRates := make(stats.Float64Data, len(reports))
	winRates := make(stats.Float64Data, len(reports))
	for i, r := range reports {
		if r.NaiveTotalPnL != naive {
			return domain.MonteCarloSummary{}, fmt.Errorf("montecarlo.summarize: run %d naive %v != run 0 naive %v: %w",
				r.Run, r.NaiveTotalPnL, naive, ErrNaiveDrift)
		}
		totals[i] = r.RealisticTotalPnL
		fillRates[i] = r.FillRate
		winRates[i] = r.RealisticWinRate
	}

	mean, err := stats.Mean(totals)
	if err != nil {
		return domain.MonteCarloSummary{}, fmt.Errorf("montecarlo.summarize: mean: %w", err)
	}
	std, err := stats.StandardDeviationPopulation(totals)
	if err != nil {
		return domain.MonteCarloSummary{}, fmt.Errorf("montecarlo.summarize: std dev: %w", err)
	}
	median, err := stats.PercentileNearestRank(totals, 50)
	if err != nil {
		return domain.MonteCarloSummary{}, fmt.Errorf("montecarlo.summarize: median: %w", err)
	}

	pcts := make(map[float64]float64, len(percentiles))
	for _, p := range percentiles {
		v, err := stats.PercentileNearestRank(totals, p)
		if err != nil {
			return domain.MonteCarloSummary{}, fmt.Errorf("montecarlo.summarize: p%v: %w", p, err)
		}
		pcts[p] = v
	}

	fillMean, _ := stats.Mean(fillRates)
	winMean, _ := stats.Mean(winRates)

	return domain.MonteCarloSummary{
		Runs:            len(reports),
		Windows:         reports[0].TotalWindows,
		NaiveTotalPnL:   naive,
		RealisticMean:   mean,
		RealisticMedian: median,
		RealisticStdDev: std,
		Percentiles:     pcts,
		FillRateMean:    fillMean,
		WinRateMean:     winMean,
		PhantomGap:      naive - median,
		Reports:         reports,
	}, nil
}
