// Package forecast projects daily commit activity forward with an additive
// trend plus yearly seasonality model.
package forecast

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"githubinsight/models"
)

// ErrInsufficientData is returned when fewer than two distinct commit days exist.
var ErrInsufficientData = errors.New("not enough data to forecast (need at least 2 days of commits)")

const (
	yearDays = 365.25
	// z80 is the two-sided 80% normal quantile.
	z80 = 1.2816
)

// Options tune the model. Zero values select the defaults.
type Options struct {
	// Horizon is the number of days predicted past the last observed day (default 90).
	Horizon int
	// SeasonalOrder is the number of yearly Fourier pairs (default 3). Short histories
	// use fewer.
	SeasonalOrder int
	// Ridge penalizes the seasonal coefficients (default 0.1).
	Ridge float64
}

func (o Options) withDefaults() Options {
	if o.Horizon <= 0 {
		o.Horizon = 90
	}
	if o.SeasonalOrder <= 0 {
		o.SeasonalOrder = 3
	}
	if o.Ridge <= 0 {
		o.Ridge = 0.1
	}
	return o
}

// Point is one day of the fitted or predicted series.
type Point struct {
	Date      time.Time `json:"ds"`
	Predicted float64   `json:"yhat"`
	Lower     float64   `json:"yhat_lower"`
	Upper     float64   `json:"yhat_upper"`
	// Actual is the observed commit count; nil for future days.
	Actual *float64 `json:"y,omitempty"`
}

// Result is the fitted history followed by the forecast, in ascending date order.
type Result struct {
	Points      []Point `json:"points"`
	HistoryDays int     `json:"history_days"`
	Horizon     int     `json:"horizon"`
}

// Forecast fits daily commit counts and predicts opts.Horizon days ahead.
func Forecast(commits []models.CommitRecord, opts Options) (*Result, error) {
	opts = opts.withDefaults()

	start, counts := dailyCounts(commits)
	n := len(counts)
	if n < 2 {
		return nil, ErrInsufficientData
	}

	order := opts.SeasonalOrder
	if maxOrder := (n - 2) / 2; order > maxOrder {
		order = maxOrder
	}
	p := 2 + 2*order

	x := mat.NewDense(n, p, nil)
	for i := 0; i < n; i++ {
		x.SetRow(i, regressors(i, n, order))
	}
	y := mat.NewVecDense(n, counts)

	var xtx mat.Dense
	xtx.Mul(x.T(), x)
	for j := 0; j < p; j++ {
		penalty := 1e-9
		if j >= 2 {
			penalty = opts.Ridge
		}
		xtx.Set(j, j, xtx.At(j, j)+penalty)
	}
	var xty, beta mat.VecDense
	xty.MulVec(x.T(), y)
	if err := beta.SolveVec(&xtx, &xty); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return nil, fmt.Errorf("fitting forecast model: %w", err)
		}
	}

	var fitted mat.VecDense
	fitted.MulVec(x, &beta)
	residuals := make([]float64, n)
	floats.SubTo(residuals, counts, fitted.RawVector().Data)
	dof := n - p
	if dof < 1 {
		dof = 1
	}
	sigma := math.Sqrt(floats.Dot(residuals, residuals) / float64(dof))

	out := &Result{
		Points:      make([]Point, 0, n+opts.Horizon),
		HistoryDays: n,
		Horizon:     opts.Horizon,
	}
	for i := 0; i < n+opts.Horizon; i++ {
		pred := mat.Dot(mat.NewVecDense(p, regressors(i, n, order)), &beta)
		ahead := 0.0
		if i >= n {
			ahead = float64(i - n + 1)
		}
		half := z80 * sigma * math.Sqrt(1+ahead/float64(n))

		pt := Point{
			Date:      start.AddDate(0, 0, i),
			Predicted: pred,
			Lower:     pred - half,
			Upper:     pred + half,
		}
		if i < n {
			actual := counts[i]
			pt.Actual = &actual
		}
		out.Points = append(out.Points, pt)
	}
	return out, nil
}

// regressors returns the design row for day index i of a history of n days:
// intercept, trend scaled so the history spans [0, 1], then sin/cos pairs.
func regressors(i, n, order int) []float64 {
	row := make([]float64, 0, 2+2*order)
	row = append(row, 1, float64(i)/float64(n-1))
	for k := 1; k <= order; k++ {
		angle := 2 * math.Pi * float64(k) * float64(i) / yearDays
		row = append(row, math.Sin(angle), math.Cos(angle))
	}
	return row
}

// dailyCounts buckets commits by UTC day from the first to the last observed
// day, including days without commits.
func dailyCounts(commits []models.CommitRecord) (time.Time, []float64) {
	if len(commits) == 0 {
		return time.Time{}, nil
	}
	days := make([]time.Time, len(commits))
	for i, c := range commits {
		t := c.Date.UTC()
		days[i] = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	start, end := days[0], days[len(days)-1]
	counts := make([]float64, dayIndex(end)-dayIndex(start)+1)
	for _, d := range days {
		counts[dayIndex(d)-dayIndex(start)]++
	}
	return start, counts
}

const secondsPerDay = 24 * 60 * 60

// dayIndex numbers UTC midnights by Unix day; time.Duration cannot span more
// than about 292 years.
func dayIndex(t time.Time) int64 {
	return t.Unix() / secondsPerDay
}
