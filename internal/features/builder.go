package features

import (
	"fmt"
	"math"
	"sync"
	"time"

	"crypto-vol-lab/internal/domain"
)

// RowsPerHour is the native sampling density: 5-minute bars.
const RowsPerHour = 12

// Config enumerates every window and lookback used by the feature
// families. All window sizes are row counts at the native interval.
type Config struct {
	ReturnLookbacks  []int // pct_change lookbacks
	MAWindows        []int // simple moving average windows
	PriceToMAWindows []int // windows for price-to-MA ratios
	EMAFastSpan      int
	EMASlowSpan      int
	MACDSignalSpan   int
	VolWindows       []int // rolling std windows
	VolMinPeriods    []int // matching minimum periods
	RangeWindows     []int // rolling max/min windows
	RoCLookbacks     []int // rate-of-change lookbacks
	RSIPeriod        int
	Lags             []int // lag offsets for price and 1h volatility
}

// DefaultConfig returns the canonical window set behind DefaultSchema.
func DefaultConfig() Config {
	return Config{
		ReturnLookbacks:  []int{1, 3, 6, 12, 48, 288},
		MAWindows:        []int{5, 12, 48, 144},
		PriceToMAWindows: []int{5, 12, 48},
		EMAFastSpan:      12,
		EMASlowSpan:      48,
		MACDSignalSpan:   9,
		VolWindows:       []int{5, 30, 12, 48},
		VolMinPeriods:    []int{2, 5, 5, 10},
		RangeWindows:     []int{5, 12},
		RoCLookbacks:     []int{12, 48},
		RSIPeriod:        14,
		Lags:             []int{1, 2, 3, 6, 12},
	}
}

// Column is one named feature column, dense over the series with NaN as
// the missing sentinel.
type Column struct {
	Name   string
	Values []float64
}

// FeatureSet is the joined output of all feature families, aligned to
// the input series row-for-row.
type FeatureSet struct {
	TimestampsMs []int64
	Columns      []Column
}

// Column returns the named column, or nil.
func (fs *FeatureSet) Column(name string) []float64 {
	for i := range fs.Columns {
		if fs.Columns[i].Name == name {
			return fs.Columns[i].Values
		}
	}
	return nil
}

// Names returns column names in canonical order.
func (fs *FeatureSet) Names() []string {
	out := make([]string, len(fs.Columns))
	for i := range fs.Columns {
		out[i] = fs.Columns[i].Name
	}
	return out
}

// Builder derives the causal feature families from a normalized series.
type Builder struct {
	cfg Config
}

// NewBuilder creates a feature builder.
func NewBuilder(cfg Config) *Builder {
	return &Builder{cfg: cfg}
}

// Build computes all five families. Families are mutually independent and
// run as a read-only fan-out over the same series; each one re-derives
// any intermediate it needs so none observes another's output. No value
// at row i reads a row past i.
func (b *Builder) Build(series *domain.Series) *FeatureSet {
	prices := series.Prices()
	timestamps := series.Timestamps()

	families := make([][]Column, 5)
	var wg sync.WaitGroup
	for i, family := range []func([]float64, []int64) []Column{
		b.priceFamily,
		b.volatilityFamily,
		b.momentumFamily,
		b.temporalFamily,
		b.lagFamily,
	} {
		wg.Add(1)
		go func(slot int, f func([]float64, []int64) []Column) {
			defer wg.Done()
			families[slot] = f(prices, timestamps)
		}(i, family)
	}
	wg.Wait()

	fs := &FeatureSet{TimestampsMs: timestamps}
	for _, cols := range families {
		fs.Columns = append(fs.Columns, cols...)
	}
	return fs
}

// priceFamily: returns, moving averages, price-to-MA ratios, EMA and MACD.
func (b *Builder) priceFamily(prices []float64, _ []int64) []Column {
	var cols []Column

	for _, lookback := range b.cfg.ReturnLookbacks {
		cols = append(cols, Column{
			Name:   "price_return_" + windowLabel(lookback),
			Values: PctChange(prices, lookback),
		})
	}

	mas := make(map[int][]float64, len(b.cfg.MAWindows))
	for _, w := range b.cfg.MAWindows {
		ma := RollingMean(prices, w, 1)
		mas[w] = ma
		cols = append(cols, Column{Name: fmt.Sprintf("ma_%d", w), Values: ma})
	}
	for _, w := range b.cfg.PriceToMAWindows {
		ma := mas[w]
		if ma == nil {
			ma = RollingMean(prices, w, 1)
		}
		cols = append(cols, Column{Name: fmt.Sprintf("price_to_ma%d", w), Values: ratio(prices, ma)})
	}

	emaFast := EMA(prices, b.cfg.EMAFastSpan)
	emaSlow := EMA(prices, b.cfg.EMASlowSpan)
	macd := make([]float64, len(prices))
	for i := range prices {
		macd[i] = emaFast[i] - emaSlow[i]
	}
	cols = append(cols,
		Column{Name: fmt.Sprintf("ema_%d", b.cfg.EMAFastSpan), Values: emaFast},
		Column{Name: fmt.Sprintf("ema_%d", b.cfg.EMASlowSpan), Values: emaSlow},
		Column{Name: "macd", Values: macd},
		Column{Name: "macd_signal", Values: EMA(macd, b.cfg.MACDSignalSpan)},
	)
	return cols
}

// volatilityFamily: rolling std, coefficient of variation, high/low range.
func (b *Builder) volatilityFamily(prices []float64, _ []int64) []Column {
	var cols []Column

	vols := make(map[int][]float64, len(b.cfg.VolWindows))
	for i, w := range b.cfg.VolWindows {
		vol := RollingStd(prices, w, b.cfg.VolMinPeriods[i])
		vols[w] = vol
		cols = append(cols, Column{Name: "volatility_" + volLabel(w), Values: vol})
	}

	// cv = volatility / matching moving average
	for _, w := range []int{12, 48} {
		vol := vols[w]
		if vol == nil {
			continue
		}
		ma := RollingMean(prices, w, 1)
		cols = append(cols, Column{Name: "cv_" + volLabel(w), Values: ratio(vol, ma)})
	}

	for _, w := range b.cfg.RangeWindows {
		high := RollingMax(prices, w)
		low := RollingMin(prices, w)
		rng := make([]float64, len(prices))
		for i := range prices {
			if math.IsNaN(high[i]) || math.IsNaN(low[i]) || low[i] == 0 {
				rng[i] = math.NaN()
			} else {
				rng[i] = (high[i] - low[i]) / low[i]
			}
		}
		label := volLabel(w)
		cols = append(cols,
			Column{Name: "high_" + label, Values: high},
			Column{Name: "low_" + label, Values: low},
			Column{Name: "hl_range_" + label, Values: rng},
		)
	}
	return cols
}

// momentumFamily: rate of change, RSI and price acceleration.
func (b *Builder) momentumFamily(prices []float64, _ []int64) []Column {
	var cols []Column

	for _, lookback := range b.cfg.RoCLookbacks {
		cols = append(cols, Column{
			Name:   fmt.Sprintf("roc_%d", lookback),
			Values: PctChange(prices, lookback),
		})
	}

	cols = append(cols, Column{Name: "rsi", Values: rsi(prices, b.cfg.RSIPeriod)})

	// Second difference of the 1-row return as an acceleration proxy.
	cols = append(cols, Column{Name: "price_accel", Values: Diff(PctChange(prices, 1))})
	return cols
}

// rsi maps the ratio of mean gains to mean losses over the period into
// [0, 100]. Zero mean loss with positive gain saturates at 100; a flat
// window is undefined.
func rsi(prices []float64, period int) []float64 {
	deltas := Diff(prices)
	gains := make([]float64, len(deltas))
	losses := make([]float64, len(deltas))
	for i, d := range deltas {
		if math.IsNaN(d) {
			gains[i] = math.NaN()
			losses[i] = math.NaN()
			continue
		}
		if d > 0 {
			gains[i] = d
		}
		if d < 0 {
			losses[i] = -d
		}
	}

	meanGain := RollingMean(gains, period, period)
	meanLoss := RollingMean(losses, period, period)

	out := make([]float64, len(prices))
	for i := range out {
		g, l := meanGain[i], meanLoss[i]
		switch {
		case math.IsNaN(g) || math.IsNaN(l):
			out[i] = math.NaN()
		case l == 0 && g == 0:
			out[i] = math.NaN()
		case l == 0:
			out[i] = 100
		default:
			rs := g / l
			out[i] = 100 - 100/(1+rs)
		}
	}
	return out
}

// temporalFamily: calendar components and cyclical encodings.
// Day-of-week is Monday=0; the weekend flag covers Saturday and Sunday.
func (b *Builder) temporalFamily(_ []float64, timestamps []int64) []Column {
	n := len(timestamps)
	hour := make([]float64, n)
	dow := make([]float64, n)
	dom := make([]float64, n)
	weekend := make([]float64, n)
	hourSin := make([]float64, n)
	hourCos := make([]float64, n)
	dowSin := make([]float64, n)
	dowCos := make([]float64, n)
	elapsed := make([]float64, n)

	var start int64
	if n > 0 {
		start = timestamps[0]
	}
	for i, ts := range timestamps {
		t := time.UnixMilli(ts).UTC()
		h := float64(t.Hour())
		d := float64((int(t.Weekday()) + 6) % 7)
		hour[i] = h
		dow[i] = d
		dom[i] = float64(t.Day())
		if d >= 5 {
			weekend[i] = 1
		}
		hourSin[i] = math.Sin(2 * math.Pi * h / 24)
		hourCos[i] = math.Cos(2 * math.Pi * h / 24)
		dowSin[i] = math.Sin(2 * math.Pi * d / 7)
		dowCos[i] = math.Cos(2 * math.Pi * d / 7)
		elapsed[i] = float64(ts-start) / float64(time.Hour.Milliseconds())
	}

	return []Column{
		{Name: "hour", Values: hour},
		{Name: "day_of_week", Values: dow},
		{Name: "day_of_month", Values: dom},
		{Name: "is_weekend", Values: weekend},
		{Name: "hour_sin", Values: hourSin},
		{Name: "hour_cos", Values: hourCos},
		{Name: "dow_sin", Values: dowSin},
		{Name: "dow_cos", Values: dowCos},
		{Name: "hours_elapsed", Values: elapsed},
	}
}

// lagFamily: price and 1-hour volatility shifted back. The volatility
// input is re-derived locally so the family stays independent.
func (b *Builder) lagFamily(prices []float64, _ []int64) []Column {
	vol1h := RollingStd(prices, RowsPerHour, 5)

	var cols []Column
	for _, lag := range b.cfg.Lags {
		cols = append(cols, Column{Name: fmt.Sprintf("price_lag_%d", lag), Values: Shift(prices, lag)})
	}
	for _, lag := range b.cfg.Lags {
		cols = append(cols, Column{Name: fmt.Sprintf("volatility_lag_%d", lag), Values: Shift(vol1h, lag)})
	}
	return cols
}

// windowLabel renders a lookback as its wall-clock span at 5-minute
// bars: 1 -> 5m, 12 -> 1h, 288 -> 24h. Used for return lookbacks.
func windowLabel(rows int) string {
	minutes := rows * 5
	if minutes%60 == 0 {
		return fmt.Sprintf("%dh", minutes/60)
	}
	return fmt.Sprintf("%dm", minutes)
}

// volLabel names volatility and range windows. Whole-hour windows use
// their wall-clock span; the rest read the bar count as minutes:
// 5 -> 5m, 30 -> 30m, 12 -> 1h, 48 -> 4h.
func volLabel(window int) string {
	if window%12 == 0 {
		return fmt.Sprintf("%dh", window/12)
	}
	return fmt.Sprintf("%dm", window)
}

// DefaultSchema is the frozen model-facing column selection, in order.
func DefaultSchema() domain.FeatureSchema {
	return domain.NewFeatureSchema([]string{
		"price_return_5m", "price_return_15m", "price_return_30m",
		"price_return_1h", "price_return_4h", "price_return_24h",
		"price_to_ma5", "price_to_ma12", "price_to_ma48",
		"macd", "macd_signal",
		"volatility_5m", "volatility_30m", "volatility_1h", "volatility_4h",
		"cv_1h", "cv_4h",
		"hl_range_5m", "hl_range_1h",
		"roc_12", "roc_48", "rsi", "price_accel",
		"hour_sin", "hour_cos", "dow_sin", "dow_cos",
		"is_weekend", "hours_elapsed",
		"price_lag_1", "price_lag_2", "price_lag_3", "price_lag_6", "price_lag_12",
		"volatility_lag_1", "volatility_lag_2", "volatility_lag_3",
	})
}
