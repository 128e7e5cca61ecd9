package fsrs

import (
	"fmt"
	"math"
)

// WeightCount is the length of the model's weight vector.
const WeightCount = 13

// Weights are the model coefficients. Use the W* index constants rather than
// bare numbers when reading a coefficient.
type Weights [WeightCount]float64

// Roles of each coefficient in Weights.
const (
	WInitStability       = 0  // initial stability intercept
	WInitStabilityRating = 1  // initial stability slope per rating
	WInitDifficulty      = 2  // initial difficulty, also the mean reversion target
	WInitDifficultySlope = 3  // initial difficulty slope per rating
	WDifficultyDelta     = 4  // difficulty change per rating step
	WMeanReversion       = 5  // share of the reversion target in the next difficulty
	WRecallScale         = 6  // exp-scaled recall stability growth
	WRecallStability     = 7  // recall growth exponent on stability
	WRecallRetrieval     = 8  // recall growth sensitivity to retrievability
	WForgetScale         = 9  // post-lapse stability scale
	WForgetDifficulty    = 10 // post-lapse exponent on difficulty
	WForgetStability     = 11 // post-lapse exponent on stability
	WForgetRetrieval     = 12 // post-lapse sensitivity to retrievability
)

// DefaultWeights are the stock coefficients of the free scheduling model.
var DefaultWeights = Weights{1, 1, 5, -0.5, -0.5, 0.2, 1.4, -0.12, 0.8, 2, -0.2, 0.2, 1}

const (
	defaultRequestRetention = 0.9
	defaultMaximumInterval  = 36500
	defaultEasyBonus        = 1.3
	defaultHardFactor       = 1.2
)

// Parameters configure the scheduler. The zero value of any field means
// "use the default", so callers can override any subset.
type Parameters struct {
	RequestRetention float64 `json:"request_retention"` // target recall probability, (0, 1)
	MaximumInterval  int     `json:"maximum_interval"`  // hard cap in days
	EasyBonus        float64 `json:"easy_bonus"`        // Easy interval multiplier, >= 1
	HardFactor       float64 `json:"hard_factor"`       // Hard interval multiplier on prior stability
	W                Weights `json:"w"`                 // all zero → DefaultWeights
}

// DefaultParameters returns the stock parameter set.
func DefaultParameters() Parameters {
	return Parameters{
		RequestRetention: defaultRequestRetention,
		MaximumInterval:  defaultMaximumInterval,
		EasyBonus:        defaultEasyBonus,
		HardFactor:       defaultHardFactor,
		W:                DefaultWeights,
	}
}

// WithDefaults fills every zero field from DefaultParameters.
func (p Parameters) WithDefaults() Parameters {
	d := DefaultParameters()
	if p.RequestRetention == 0 {
		p.RequestRetention = d.RequestRetention
	}
	if p.MaximumInterval == 0 {
		p.MaximumInterval = d.MaximumInterval
	}
	if p.EasyBonus == 0 {
		p.EasyBonus = d.EasyBonus
	}
	if p.HardFactor == 0 {
		p.HardFactor = d.HardFactor
	}
	if p.W == (Weights{}) {
		p.W = d.W
	}
	return p
}

// Validate reports the first out-of-range or non-finite field.
func (p Parameters) Validate() error {
	if !isFinite(p.RequestRetention) || p.RequestRetention <= 0 || p.RequestRetention >= 1 {
		return fmt.Errorf("%w: request retention %v must be in (0, 1)", ErrInvalidParameters, p.RequestRetention)
	}
	if p.MaximumInterval < 1 {
		return fmt.Errorf("%w: maximum interval %d must be at least 1 day", ErrInvalidParameters, p.MaximumInterval)
	}
	if !isFinite(p.EasyBonus) || p.EasyBonus < 1 {
		return fmt.Errorf("%w: easy bonus %v must be >= 1", ErrInvalidParameters, p.EasyBonus)
	}
	if !isFinite(p.HardFactor) || p.HardFactor <= 0 {
		return fmt.Errorf("%w: hard factor %v must be positive", ErrInvalidParameters, p.HardFactor)
	}
	for i, w := range p.W {
		if !isFinite(w) {
			return fmt.Errorf("%w: w[%d] = %v is not finite", ErrInvalidParameters, i, w)
		}
	}
	return nil
}

// WeightsFromSlice copies a 13-element slice into Weights.
func WeightsFromSlice(ws []float64) (Weights, error) {
	var w Weights
	if len(ws) != WeightCount {
		return w, fmt.Errorf("%w: want %d weights, got %d", ErrInvalidParameters, WeightCount, len(ws))
	}
	copy(w[:], ws)
	return w, nil
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
