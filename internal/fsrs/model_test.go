package fsrs

import (
	"math"
	"testing"
)

const epsilon = 1e-9

func assertFloat(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > epsilon {
		t.Errorf("%s = %.9f, want %.9f", name, got, want)
	}
}

func defaultModel() *model {
	return &model{p: DefaultParameters()}
}

func TestInitStability(t *testing.T) {
	m := defaultModel()
	want := map[Rating]float64{Again: 1, Hard: 2, Good: 3, Easy: 4}
	for r, s := range want {
		assertFloat(t, "initStability("+r.String()+")", m.initStability(r), s)
	}

	t.Run("floored at 0.1", func(t *testing.T) {
		p := DefaultParameters()
		p.W[WInitStability] = -5
		m := &model{p: p}
		assertFloat(t, "initStability(Again)", m.initStability(Again), 0.1)
	})
}

func TestInitDifficulty(t *testing.T) {
	m := defaultModel()
	want := map[Rating]float64{Again: 6, Hard: 5.5, Good: 5, Easy: 4.5}
	for r, d := range want {
		assertFloat(t, "initDifficulty("+r.String()+")", m.initDifficulty(r), d)
	}

	t.Run("clamped to [1, 10]", func(t *testing.T) {
		p := DefaultParameters()
		p.W[WInitDifficultySlope] = -20
		m := &model{p: p}
		assertFloat(t, "initDifficulty(Again)", m.initDifficulty(Again), 10)
		assertFloat(t, "initDifficulty(Easy)", m.initDifficulty(Easy), 1)
	})
}

func TestNextDifficulty(t *testing.T) {
	m := defaultModel()
	// 0.2*5 + 0.8*(5 + -0.5*(r-2))
	assertFloat(t, "Again", m.nextDifficulty(5, Again), 5.8)
	assertFloat(t, "Hard", m.nextDifficulty(5, Hard), 5.4)
	assertFloat(t, "Good", m.nextDifficulty(5, Good), 5)
	assertFloat(t, "Easy", m.nextDifficulty(5, Easy), 4.6)

	if d := m.nextDifficulty(10, Again); d > 10 {
		t.Errorf("Expected difficulty to stay <= 10, got %.2f", d)
	}
	if d := m.nextDifficulty(1, Easy); d < 1 {
		t.Errorf("Expected difficulty to stay >= 1, got %.2f", d)
	}
}

func TestRetrievability(t *testing.T) {
	assertFloat(t, "R(0, 5)", Retrievability(0, 5), 1)
	assertFloat(t, "R(10, 10)", Retrievability(10, 10), 0.9)
	assertFloat(t, "R(5, 10)", Retrievability(5, 10), math.Sqrt(0.9))

	for _, tc := range []struct{ t, s float64 }{{0, 0.1}, {1, 0.1}, {365, 20}, {3, 1000}} {
		r := Retrievability(tc.t, tc.s)
		if r <= 0 || r > 1 {
			t.Errorf("R(%v, %v) = %v, want within (0, 1]", tc.t, tc.s, r)
		}
	}
	if Retrievability(1, 5) <= Retrievability(10, 5) {
		t.Error("Expected retrievability to decrease with elapsed time")
	}

	t.Run("non-positive stability", func(t *testing.T) {
		for _, s := range []float64{0, -1, math.NaN()} {
			if r := Retrievability(0, s); r != 0 {
				t.Errorf("R(0, %v) = %v, want 0", s, r)
			}
		}
	})
}

func TestNextRecallStability(t *testing.T) {
	m := defaultModel()
	// 10 * (1 + e^1.4 * 6 * 10^-0.12 * (e^(0.1*0.8) - 1))
	want := 10 * (1 + math.Exp(1.4)*6*math.Pow(10, -0.12)*(math.Exp(0.08)-1))
	assertFloat(t, "S'r(5, 10, 0.9)", m.nextRecallStability(5, 10, 0.9), want)

	if got := m.nextRecallStability(5, 10, 1); got != 10 {
		t.Errorf("Expected no growth at full retrievability, got %.4f", got)
	}
	if m.nextRecallStability(3, 10, 0.9) <= m.nextRecallStability(8, 10, 0.9) {
		t.Error("Expected easier items to gain more stability")
	}
}

func TestNextForgetStability(t *testing.T) {
	m := defaultModel()
	want := 2 * math.Pow(5.8, -0.2) * math.Pow(10, 0.2) * math.Exp(0.1)
	assertFloat(t, "S'f(5.8, 10, 0.9)", m.nextForgetStability(5.8, 10, 0.9), want)
	if want >= 10 {
		t.Errorf("Expected a lapse to reset stability below the prior value, got %.4f", want)
	}
}

func TestNextInterval(t *testing.T) {
	m := defaultModel()
	testCases := []struct {
		stability float64
		want      int
	}{
		{0, 1},
		{0.1, 1},
		{1.4, 1},
		{5.2, 5},
		{15.5, 16},
		{36499.6, 36500},
		{1e9, 36500},
	}
	for _, tc := range testCases {
		if got := m.nextInterval(tc.stability); got != tc.want {
			t.Errorf("nextInterval(%v) = %d, want %d", tc.stability, got, tc.want)
		}
	}

	t.Run("lower retention stretches intervals", func(t *testing.T) {
		p := DefaultParameters()
		p.RequestRetention = 0.8
		m := &model{p: p}
		// 10 * ln(0.8) / ln(0.9) = 21.18
		if got := m.nextInterval(10); got != 21 {
			t.Errorf("Expected 21 days, got %d", got)
		}
	})

	t.Run("respects maximum interval", func(t *testing.T) {
		p := DefaultParameters()
		p.MaximumInterval = 30
		m := &model{p: p}
		for _, s := range []float64{0, 1, 29.4, 31, 1000, math.Inf(1)} {
			got := m.nextInterval(s)
			if got < 1 || got > 30 {
				t.Errorf("nextInterval(%v) = %d, want within [1, 30]", s, got)
			}
		}
	})
}
