package domain

// ReplayResult is the outcome of replaying one window with one strategy instance.
type ReplayResult struct {
	MarketID string
	Category string
	Outcome  Outcome

	Traded          bool // at least one PlaceBid was accepted
	Predicted       Side // side of the first bid still standing at the end, "" if none
	OrdersPlaced    int
	SharesRequested float64
	SharesFilled    float64
	FillRate        float64 // SharesFilled / SharesRequested

	NaivePnL     float64 // every standing bid valued as an instant fill
	RealisticPnL float64 // recorded fills only
	NaiveCorrect bool    // naive prediction matched the outcome
	Correct      bool    // side with most filled shares matched the outcome

	QueueAheadAtPlace float64
	Filled            bool
	FirstFillMs       int64 // window offset of the first fill, valid when Filled

	Fills          []Fill
	Actions        int
	InvalidActions int

	Failed bool
	Fault  string

	RefPriceOpen  float64
	RefPriceClose float64
}

// PhantomGap es la diferencia naive - realistic de una ventana.
func (r ReplayResult) PhantomGap() float64 {
	return r.NaivePnL - r.RealisticPnL
}

// Report agrega los resultados de todas las ventanas de un run.
type Report struct {
	Strategy string
	Run      int
	Seed     uint64

	TotalWindows int
	TradesTaken  int
	Fills        int // ventanas con al menos un fill
	Correct      int // ventanas con fill y dirección correcta
	Skipped      int // ventanas sin trade
	Failed       int // ventanas abortadas por StrategyFault

	FillRate         float64
	NaiveWinRate     float64
	RealisticWinRate float64

	NaiveTotalPnL     float64
	RealisticTotalPnL float64
	PhantomGap        float64
	AvgNaivePnL       float64
	AvgRealisticPnL   float64

	AvgQueueAhead  float64
	AvgFillTimeMs  float64
	InvalidActions int
}

// NewReport construye el Report de un run a partir de sus resultados.
// Las ventanas fallidas cuentan en TotalWindows y Failed pero no en PnL;
// el PnL de todas las demás se suma, hayan operado o no.
func NewReport(strategy string, run int, seed uint64, results []ReplayResult) Report {
	r := Report{
		Strategy:     strategy,
		Run:          run,
		Seed:         seed,
		TotalWindows: len(results),
	}

	var naiveCorrect int
	var queueSum, fillTimeSum float64
	var fillTimes int
	for _, res := range results {
		r.InvalidActions += res.InvalidActions
		if res.Failed {
			r.Failed++
			continue
		}
		r.NaiveTotalPnL += res.NaivePnL
		r.RealisticTotalPnL += res.RealisticPnL
		if !res.Traded {
			r.Skipped++
			continue
		}
		r.TradesTaken++
		queueSum += res.QueueAheadAtPlace
		if res.NaiveCorrect {
			naiveCorrect++
		}
		if res.Filled {
			r.Fills++
			fillTimeSum += float64(res.FirstFillMs)
			fillTimes++
			if res.Correct {
				r.Correct++
			}
		}
	}

	r.PhantomGap = r.NaiveTotalPnL - r.RealisticTotalPnL
	if r.TradesTaken > 0 {
		n := float64(r.TradesTaken)
		r.FillRate = float64(r.Fills) / n
		r.NaiveWinRate = float64(naiveCorrect) / n
		r.AvgNaivePnL = r.NaiveTotalPnL / n
		r.AvgRealisticPnL = r.RealisticTotalPnL / n
		r.AvgQueueAhead = queueSum / n
	}
	if r.Fills > 0 {
		r.RealisticWinRate = float64(r.Correct) / float64(r.Fills)
	}
	if fillTimes > 0 {
		r.AvgFillTimeMs = fillTimeSum / float64(fillTimes)
	}
	return r
}

// MonteCarloSummary resume N runs sobre el mismo conjunto de ventanas.
type MonteCarloSummary struct {
	RunID    string
	Strategy string
	Runs     int
	Seed     uint64
	Windows  int

	NaiveTotalPnL float64 // determinista: idéntico en todos los runs

	RealisticMean   float64
	RealisticMedian float64
	RealisticStdDev float64
	Percentiles     map[float64]float64 // percentil → PnL realista

	FillRateMean float64
	WinRateMean  float64
	PhantomGap   float64 // naive - mediana realista

	Reports []Report
}

// Percentile devuelve el percentil pedido si fue calculado.
func (s MonteCarloSummary) Percentile(p float64) (float64, bool) {
	v, ok := s.Percentiles[p]
	return v, ok
}
