package fsrs

import "math"

const (
	minStability  = 0.1
	minDifficulty = 1.0
	maxDifficulty = 10.0
)

// ln(0.9): the forgetting curve is calibrated so that R(S, S) = 0.9.
var ln09 = math.Log(0.9)

// model holds the pure memory formulas, parameterized by a validated set.
type model struct {
	p Parameters
}

// Retrievability estimates the probability of recall after elapsedDays for
// an item with the given stability: R = exp(ln(0.9) * t / S). It is 0 when
// stability is not positive.
func Retrievability(elapsedDays, stability float64) float64 {
	if !(stability > 0) {
		return 0
	}
	return math.Exp(ln09 * elapsedDays / stability)
}

// initStability: S0(r) = max(w0 + w1*r, 0.1).
func (m *model) initStability(r Rating) float64 {
	w := &m.p.W
	return math.Max(w[WInitStability]+w[WInitStabilityRating]*float64(r), minStability)
}

// initDifficulty: D0(r) = clamp(w2 + w3*(r-2)).
func (m *model) initDifficulty(r Rating) float64 {
	w := &m.p.W
	return constrainDifficulty(w[WInitDifficulty] + w[WInitDifficultySlope]*float64(r-2))
}

// nextDifficulty moves d by w4*(r-2), then reverts part of the way to w2.
func (m *model) nextDifficulty(d float64, r Rating) float64 {
	w := &m.p.W
	next := d + w[WDifficultyDelta]*float64(r-2)
	return constrainDifficulty(m.meanReversion(w[WInitDifficulty], next))
}

func (m *model) meanReversion(init, current float64) float64 {
	share := m.p.W[WMeanReversion]
	return share*init + (1-share)*current
}

// nextRecallStability: S' = S * (1 + e^w6 * (11-D) * S^w7 * (e^((1-R)*w8) - 1)).
func (m *model) nextRecallStability(d, s, r float64) float64 {
	w := &m.p.W
	return s * (1 + math.Exp(w[WRecallScale])*
		(11-d)*
		math.Pow(s, w[WRecallStability])*
		(math.Exp((1-r)*w[WRecallRetrieval])-1))
}

// nextForgetStability: S' = w9 * D^w10 * S^w11 * e^((1-R)*w12).
func (m *model) nextForgetStability(d, s, r float64) float64 {
	w := &m.p.W
	return w[WForgetScale] *
		math.Pow(d, w[WForgetDifficulty]) *
		math.Pow(s, w[WForgetStability]) *
		math.Exp((1-r)*w[WForgetRetrieval])
}

// nextInterval inverts the forgetting curve: the number of days until
// retrievability falls to the requested retention, clamped to
// [1, MaximumInterval].
func (m *model) nextInterval(s float64) int {
	ivl := math.Round(s * math.Log(m.p.RequestRetention) / ln09)
	if math.IsNaN(ivl) || ivl < 1 {
		return 1
	}
	if ivl > float64(m.p.MaximumInterval) {
		return m.p.MaximumInterval
	}
	return int(ivl)
}

func constrainDifficulty(d float64) float64 {
	return math.Min(math.Max(d, minDifficulty), maxDifficulty)
}
