package kgain

import "math"

// algo holds precomputed constants derived from the 21 model parameters.
// Every version is evaluated through it; older versions arrive padded.
type algo struct {
	w      [LenV6]float64
	decay  float64 // -w[20]
	factor float64 // 0.9^(1/decay) - 1
	legacy bool    // V4 difficulty rules, no same-day branch
}

// newAlgo creates an algo with precomputed decay and factor.
func newAlgo(p [LenV6]float64) algo {
	decay := -p[20]
	return algo{w: p, decay: decay, factor: factorOf(decay)}
}

// newLegacyAlgo creates an algo that follows the 17-parameter rules: linear
// initial difficulty, mean reversion to w[4] without damping, and the
// long-term stability formulas at any elapsed time.
func newLegacyAlgo(p [LenV6]float64) algo {
	a := newAlgo(p)
	a.legacy = true
	return a
}

// factorOf returns 0.9^(1/decay) - 1, the constant that makes R(S, S) = 0.9.
func factorOf(decay float64) float64 {
	return math.Pow(0.9, 1.0/decay) - 1.0
}

// powerForgettingCurve computes R(t, S) = (1 + factor * t / S) ^ decay.
// Stability ≤ 0 yields 0.
func powerForgettingCurve(t, s, decay, factor float64) float64 {
	if s <= 0 {
		return 0
	}
	return math.Pow(1+factor*t/s, decay)
}

func (a *algo) retrievability(elapsedDays, stability float64) float64 {
	return powerForgettingCurve(elapsedDays, stability, a.decay, a.factor)
}

// intervalFromRetention solves R(t, S) = r for t.
// t = S * (r^(1/decay) - 1) / factor
func (a *algo) intervalFromRetention(stability, retention float64) float64 {
	return stability * (math.Pow(retention, 1.0/a.decay) - 1) / a.factor
}

// initStability returns S₀(G) = w[G-1].
func (a *algo) initStability(r Rating) float64 {
	return a.w[r-1]
}

// initDifficulty returns D₀(G) = w[4] - e^(w[5] * (G - 1)) + 1, unclamped.
// Legacy models use D₀(G) = w[4] - w[5] * (G - 3).
func (a *algo) initDifficulty(r Rating) float64 {
	if a.legacy {
		return a.w[4] - a.w[5]*(float64(r)-3)
	}
	return a.w[4] - math.Exp(a.w[5]*float64(r-1)) + 1
}

// nextDifficulty computes the updated difficulty after a review.
// ΔD = -w[6] * (G - 3)
// D' = D + ΔD * (10 - D) / 9         (linear damping)
// D_r = w[7]*D₀(Easy) + (1-w[7])*D'  (mean reversion)
//
// Legacy models skip the damping and revert to w[4]:
// D_r = w[7]*w[4] + (1-w[7])*(D + ΔD)
func (a *algo) nextDifficulty(d float64, r Rating) float64 {
	deltaD := -a.w[6] * (float64(r) - 3)
	if a.legacy {
		return a.w[7]*a.w[4] + (1-a.w[7])*(d+deltaD)
	}
	dPrime := d + deltaD*(10-d)/9
	return a.w[7]*a.initDifficulty(Easy) + (1-a.w[7])*dPrime
}

// shortTermStability computes the same-day review stability.
// S' = S * e^(w[17] * (G - 3 + w[18])) * S^(-w[19])
func (a *algo) shortTermStability(s float64, r Rating) float64 {
	return s * math.Exp(a.w[17]*(float64(r)-3+a.w[18])) * math.Pow(s, -a.w[19])
}

// nextForgetStability computes stability after forgetting.
// S'_f = w[11] * D^(-w[12]) * ((S+1)^w[13] - 1) * e^((1-R)*w[14])
func (a *algo) nextForgetStability(d, s, r float64) float64 {
	return a.w[11] *
		math.Pow(d, -a.w[12]) *
		(math.Pow(s+1, a.w[13]) - 1) *
		math.Exp((1-r)*a.w[14])
}

// nextRecallStability computes stability after a Good recall.
// S'_r = S * (1 + e^w[8] * (11-D) * S^(-w[9]) * (e^((1-R)*w[10]) - 1))
func (a *algo) nextRecallStability(d, s, r float64) float64 {
	return s * (1 + math.Exp(a.w[8])*
		(11-d)*
		math.Pow(s, -a.w[9])*
		(math.Exp((1-r)*a.w[10])-1))
}

// firstExposure returns the clamped state after the first review of an
// unseen item rated r.
func (a *algo) firstExposure(r Rating) MemoryState {
	return MemoryState{Difficulty: a.initDifficulty(r), Stability: a.initStability(r)}.clamped()
}

// simulate returns the forget and recall outcomes of reviewing state after
// elapsedDays. R is taken from the forgetting curve unless override is set.
// Legacy models have no same-day branch.
func (a *algo) simulate(state MemoryState, elapsedDays float64, retention float64, override bool) Outcome {
	r := retention
	if !override {
		r = a.retrievability(elapsedDays, state.Stability)
	}
	probs := [2]float64{1 - r, r}

	var out Outcome
	for i, rating := range simulatedRatings {
		var next MemoryState
		switch {
		case state.IsUnseen():
			next = a.firstExposure(rating)
		case elapsedDays < 1 && !a.legacy:
			next = MemoryState{
				Difficulty: a.nextDifficulty(state.Difficulty, rating),
				Stability:  a.shortTermStability(state.Stability, rating),
			}
		case rating == Again:
			next = MemoryState{
				Difficulty: a.nextDifficulty(state.Difficulty, rating),
				Stability:  a.nextForgetStability(state.Difficulty, state.Stability, r),
			}
		default:
			next = MemoryState{
				Difficulty: a.nextDifficulty(state.Difficulty, rating),
				Stability:  a.nextRecallStability(state.Difficulty, state.Stability, r),
			}
		}
		out.set(i, Branch{Rating: rating, Probability: probs[i], State: next.clamped()})
	}
	return out
}
