package experiment

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/sells-group/hypolab/internal/model"
)

// ErrInvalidConfig marks comparison settings that cannot be evaluated.
var ErrInvalidConfig = eris.New("experiment: invalid comparison config")

// Decision values.
const (
	WinnerA      = "A"
	WinnerB      = "B"
	Inconclusive = "Inconclusive"
)

// Method selects which analysis the caller intends to act on. Every
// analysis is always computed; the method is validated and echoed.
type Method string

const (
	MethodAuto        Method = "auto"
	MethodFrequentist Method = "frequentist"
	MethodBayesian    Method = "bayesian"
	MethodSequential  Method = "sequential"
)

// Primary metrics with a proportion model.
const (
	MetricCTR          = "ctr"
	MetricPurchaseRate = "purchase_rate"
	MetricClicksPer1K  = "clicks_per_1000_views"
)

// DefaultDraws is the Monte-Carlo sample count for P(B>A).
const DefaultDraws = 3000

// Config controls one comparison.
type Config struct {
	PrimaryMetric string  `json:"primaryMetric" mapstructure:"primary_metric"`
	Alpha         float64 `json:"alpha" mapstructure:"alpha"`
	MDE           float64 `json:"mde" mapstructure:"mde"`
	MinExposure   float64 `json:"minExposure" mapstructure:"min_exposure"`
	Method        Method  `json:"method" mapstructure:"method"`
}

// DefaultConfig returns ctr with alpha 0.05, mde 0.1 and 1000 views per arm.
func DefaultConfig() Config {
	return Config{
		PrimaryMetric: MetricCTR,
		Alpha:         0.05,
		MDE:           0.1,
		MinExposure:   1000,
		Method:        MethodAuto,
	}
}

// Validate reports whether the config can be evaluated.
func (c Config) Validate() error {
	if !knownMetric(c.PrimaryMetric) {
		return eris.Wrapf(ErrInvalidConfig, "unknown primary metric %q", c.PrimaryMetric)
	}
	if !(c.Alpha > 0 && c.Alpha < 1) {
		return eris.Wrapf(ErrInvalidConfig, "alpha must be in (0,1), got %v", c.Alpha)
	}
	if c.MDE < 0 || math.IsNaN(c.MDE) {
		return eris.Wrapf(ErrInvalidConfig, "mde must be >= 0, got %v", c.MDE)
	}
	if c.MinExposure < 0 || math.IsNaN(c.MinExposure) {
		return eris.Wrapf(ErrInvalidConfig, "minExposure must be >= 0, got %v", c.MinExposure)
	}
	switch c.Method {
	case MethodAuto, MethodFrequentist, MethodBayesian, MethodSequential:
	default:
		return eris.Wrapf(ErrInvalidConfig, "unknown method %q", c.Method)
	}
	return nil
}

func knownMetric(m string) bool {
	switch m {
	case MetricCTR, MetricPurchaseRate, MetricClicksPer1K:
		return true
	}
	f := model.DefaultRegistry.ByName(m)
	return f != nil && f.Numeric()
}

func isProportion(m string) bool {
	return m == MetricCTR || m == MetricPurchaseRate
}

// Values are the primary metric values of both arms.
type Values struct {
	A float64 `json:"A"`
	B float64 `json:"B"`
}

// Frequentist is the significance test result.
type Frequentist struct {
	Z       float64 `json:"z"`
	PValue  float64 `json:"p_value"`
	Delta   float64 `json:"delta"`
	CILow   float64 `json:"ci95_low"`
	CIHigh  float64 `json:"ci95_high"`
	Winner  string  `json:"winner"`
	Alpha   float64 `json:"alpha"`
	Metric  string  `json:"metric"`
	Details string  `json:"details"`
}

// Bayesian is the approximate posterior comparison. Heuristic is true when
// the probabilities are fixed constants rather than a posterior.
type Bayesian struct {
	PBGreaterA     float64 `json:"p_b_gt_a"`
	PUpliftOverMDE float64 `json:"p_uplift_gt_mde"`
	Recommendation string  `json:"recommendation"`
	Heuristic      bool    `json:"heuristic"`
}

// Sequential is the exposure-gated stopping decision.
type Sequential struct {
	ExposureA  float64 `json:"exposure_a"`
	ExposureB  float64 `json:"exposure_b"`
	ExposureOK bool    `json:"exposure_ok"`
	Decision   string  `json:"decision"`
}

// Result is the outcome of one comparison.
type Result struct {
	VideoAID        string      `json:"videoAId,omitempty"`
	VideoBID        string      `json:"videoBId,omitempty"`
	Metric          string      `json:"primaryMetric"`
	Method          Method      `json:"method"`
	Values          Values      `json:"values"`
	Derived         [2]Derived  `json:"derived"`
	Frequentist     Frequentist `json:"frequentist"`
	Bayesian        Bayesian    `json:"bayesian"`
	Sequential      Sequential  `json:"sequential"`
	QualityFlags    []string    `json:"qualityFlags"`
	Decision        string      `json:"decision"`
	Verdict         string      `json:"verdict"`
	Recommendations []string    `json:"recommendations"`
}

var (
	recommendB = []string{
		"Roll out variant B's hook and creative to the remaining audience.",
		"Reuse B's opening as the baseline for the next hypothesis.",
		"Keep monitoring B for novelty decay over the next week.",
	}
	recommendA = []string{
		"Keep variant A as the control; B underperformed.",
		"Review what B changed and discard or rework that element.",
		"Test a new challenger against A.",
	}
	recommendNone = []string{
		"Keep both variants running until each reaches the exposure minimum.",
		"Consider a larger minimum detectable effect or a longer test window.",
		"Check the quality flags before drawing conclusions.",
	}
)

// Engine runs comparisons. It is safe for concurrent use.
type Engine struct {
	draws int

	mu  sync.Mutex
	rng *rand.Rand
}

// NewEngine creates an Engine. draws <= 0 uses DefaultDraws; a nil rng
// uses the unseeded global source.
func NewEngine(draws int, rng *rand.Rand) *Engine {
	if draws <= 0 {
		draws = DefaultDraws
	}
	return &Engine{draws: draws, rng: rng}
}

// Compare evaluates arm B against arm A under cfg.
func (e *Engine) Compare(a, b *model.Video, cfg Config) (*Result, error) {
	if a == nil || b == nil {
		return nil, eris.New("experiment: both arms are required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ca, cb := CountersFrom(a), CountersFrom(b)
	da, db := Derive(ca), Derive(cb)

	res := &Result{
		VideoAID: a.ID,
		VideoBID: b.ID,
		Metric:   cfg.PrimaryMetric,
		Method:   cfg.Method,
		Derived:  [2]Derived{da, db},
		Values:   Values{A: metricValue(a, da, cfg.PrimaryMetric), B: metricValue(b, db, cfg.PrimaryMetric)},
	}

	exposureOK := ca.Views >= cfg.MinExposure && cb.Views >= cfg.MinExposure
	res.Sequential = Sequential{ExposureA: ca.Views, ExposureB: cb.Views, ExposureOK: exposureOK}

	if isProportion(cfg.PrimaryMetric) {
		sa, ta := proportionInputs(ca, cfg.PrimaryMetric)
		sb, tb := proportionInputs(cb, cfg.PrimaryMetric)
		res.Frequentist = frequentistProportion(sa, ta, sb, tb, cfg)
		res.Bayesian = e.bayesianProportion(sa, ta, sb, tb, cfg.MDE)
	} else {
		res.Frequentist, res.Bayesian = normalizedRate(ca, cb, cfg)
	}

	res.Sequential.Decision = sequentialDecision(exposureOK, res.Bayesian.PBGreaterA)
	res.QualityFlags = qualityFlags(a, b, da, db)

	switch {
	case !exposureOK:
		res.Decision = Inconclusive
	case res.Frequentist.Winner != Inconclusive:
		res.Decision = res.Frequentist.Winner
	default:
		res.Decision = res.Sequential.Decision
	}

	switch res.Decision {
	case WinnerB:
		res.Recommendations = recommendB
	case WinnerA:
		res.Recommendations = recommendA
	default:
		res.Recommendations = recommendNone
	}
	res.Verdict = verdict(res, cfg)
	return res, nil
}

func metricValue(v *model.Video, d Derived, metric string) float64 {
	switch metric {
	case MetricCTR:
		return d.CTR
	case MetricPurchaseRate:
		return d.PurchaseRate
	case MetricClicksPer1K:
		return d.ClicksPer1000Views
	default:
		return v.Float(metric)
	}
}

func proportionInputs(c Counters, metric string) (success, total float64) {
	if metric == MetricPurchaseRate {
		total = c.ViewContent
		if total == 0 {
			total = c.Views
		}
		return c.Purchases, math.Max(total, 1)
	}
	return c.Clicks, math.Max(c.Views, 1)
}

func frequentistProportion(sa, ta, sb, tb float64, cfg Config) Frequentist {
	p1, p2, se, z := twoProportion(sa, ta, sb, tb)
	f := Frequentist{
		Z:      z,
		PValue: twoSidedPValue(z),
		Delta:  p2 - p1,
		CILow:  (p2 - p1) - 1.96*se,
		CIHigh: (p2 - p1) + 1.96*se,
		Alpha:  cfg.Alpha,
		Metric: cfg.PrimaryMetric,
	}
	f.Winner = winner(f.PValue, cfg.Alpha, p2-p1)
	f.Details = fmt.Sprintf("two-proportion z-test: p1=%.4f p2=%.4f se=%.5f", p1, p2, se)
	return f
}

func (e *Engine) bayesianProportion(sa, ta, sb, tb, mde float64) Bayesian {
	alphaA, betaA := 0.5+sa, 0.5+math.Max(ta-sa, 0)
	alphaB, betaB := 0.5+sb, 0.5+math.Max(tb-sb, 0)

	u := rand.Float64
	if e.rng != nil {
		e.mu.Lock()
		defer e.mu.Unlock()
		u = e.rng.Float64
	}

	var bWins, upliftWins int
	for range e.draws {
		x := betaApprox(u, alphaA, betaA)
		y := betaApprox(u, alphaB, betaB)
		if y > x {
			bWins++
		}
		if y > x*(1+mde) {
			upliftWins++
		}
	}

	p := float64(bWins) / float64(e.draws)
	return Bayesian{
		PBGreaterA:     p,
		PUpliftOverMDE: float64(upliftWins) / float64(e.draws),
		Recommendation: bayesRecommendation(p),
	}
}

// normalizedRate compares clicks per 1000 views for metrics without a
// proportion model. The Bayesian side is a fixed heuristic.
func normalizedRate(ca, cb Counters, cfg Config) (Frequentist, Bayesian) {
	rateA, rateB := 0.0, 0.0
	if ca.Views > 0 {
		rateA = 1000 * ca.Clicks / ca.Views
	}
	if cb.Views > 0 {
		rateB = 1000 * cb.Clicks / cb.Views
	}
	delta := rateB - rateA
	se := math.Sqrt(math.Max((math.Abs(rateA)+math.Abs(rateB))/math.Max(ca.Views+cb.Views, 1), 1e-6))
	z := delta / se

	f := Frequentist{
		Z:       z,
		PValue:  twoSidedPValue(z),
		Delta:   delta,
		CILow:   delta - 1.96*se,
		CIHigh:  delta + 1.96*se,
		Alpha:   cfg.Alpha,
		Metric:  cfg.PrimaryMetric,
		Details: fmt.Sprintf("normalized rate per 1000 views: A=%.3f B=%.3f se=%.5f", rateA, rateB, se),
	}
	f.Winner = winner(f.PValue, cfg.Alpha, delta)

	b := Bayesian{PBGreaterA: 0.2, PUpliftOverMDE: 0.4, Heuristic: true}
	if delta > 0 {
		b.PBGreaterA = 0.8
	}
	if math.Abs(delta) > cfg.MDE {
		b.PUpliftOverMDE = 0.8
	}
	b.Recommendation = bayesRecommendation(b.PBGreaterA)
	return f, b
}

func winner(pValue, alpha, delta float64) string {
	switch {
	case pValue < alpha && delta > 0:
		return WinnerB
	case pValue < alpha && delta < 0:
		return WinnerA
	default:
		return Inconclusive
	}
}

func bayesRecommendation(pBGreaterA float64) string {
	switch {
	case pBGreaterA > 0.95:
		return "B probable"
	case pBGreaterA < 0.05:
		return "A probable"
	default:
		return "inconclusive"
	}
}

func sequentialDecision(exposureOK bool, pBGreaterA float64) string {
	switch {
	case !exposureOK:
		return Inconclusive
	case pBGreaterA > 0.95:
		return WinnerB
	case pBGreaterA < 0.05:
		return WinnerA
	default:
		return Inconclusive
	}
}

func qualityFlags(a, b *model.Video, da, db Derived) []string {
	flags := []string{}
	if a.VideoType() != b.VideoType() {
		flags = append(flags, "video_type_mismatch")
	}
	if da.CTR > 1 {
		flags = append(flags, "ctr_above_one:A")
	}
	if db.CTR > 1 {
		flags = append(flags, "ctr_above_one:B")
	}
	return flags
}

func verdict(res *Result, cfg Config) string {
	if !res.Sequential.ExposureOK {
		return fmt.Sprintf("Not enough data: each arm needs %s views (A has %s, B has %s).",
			formatCount(cfg.MinExposure), formatCount(res.Sequential.ExposureA), formatCount(res.Sequential.ExposureB))
	}
	switch res.Decision {
	case WinnerB, WinnerA:
		loser := WinnerA
		if res.Decision == WinnerA {
			loser = WinnerB
		}
		basis := fmt.Sprintf("p=%.4f", res.Frequentist.PValue)
		if res.Frequentist.Winner == Inconclusive {
			basis = fmt.Sprintf("P(B>A)=%.2f", res.Bayesian.PBGreaterA)
		}
		return fmt.Sprintf("%s beats %s on %s (%s).", res.Decision, loser, res.Metric, basis)
	default:
		return fmt.Sprintf("No clear winner on %s yet (p=%.4f, P(B>A)=%.2f).",
			res.Metric, res.Frequentist.PValue, res.Bayesian.PBGreaterA)
	}
}

func formatCount(x float64) string {
	return strconv.FormatFloat(x, 'f', 0, 64)
}
