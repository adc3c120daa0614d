package kgain

import (
	"fmt"
	"math"

	"github.com/sky-flux/kgain/special"
)

// DefaultDiscountRate is the per-day discount applied to future knowledge.
const DefaultDiscountRate = 0.99

// Window is an integration range in days. End = +Inf leaves it open.
type Window struct {
	Begin float64 `json:"begin" yaml:"begin"`
	End   float64 `json:"end" yaml:"end"`
}

// From returns the open window [begin, ∞).
func From(begin float64) Window {
	return Window{Begin: begin, End: math.Inf(1)}
}

// Open reports whether w has no upper bound.
func (w Window) Open() bool {
	return math.IsInf(w.End, 1)
}

func (w Window) validate() error {
	if !isFinite(w.Begin) || w.Begin < 0 {
		return fmt.Errorf("%w: begin %v", ErrInvalidWindow, w.Begin)
	}
	if math.IsNaN(w.End) || w.End < w.Begin {
		return fmt.Errorf("%w: end %v before begin %v", ErrInvalidWindow, w.End, w.Begin)
	}
	return nil
}

// KnowledgeIntegral returns the discounted knowledge held over w by an item
// of the given stability:
//
//	L · ∫_{w.Begin}^{w.End} (1 + factor·t/S)^decay · γ^(t - w.Begin) dt,  L = -ln γ
//
// evaluated in closed form through the upper incomplete gamma function.
// Stability zero yields 0 for every window.
func KnowledgeIntegral(stability, decay, factor float64, w Window, discountRate float64) (float64, error) {
	return KnowledgeIntegralTol(stability, decay, factor, w, discountRate, special.DefaultTolerance)
}

// KnowledgeIntegralTol is KnowledgeIntegral with an explicit incomplete
// gamma tolerance. Zero selects special.DefaultTolerance.
func KnowledgeIntegralTol(stability, decay, factor float64, w Window, discountRate, tol float64) (float64, error) {
	if !isFinite(stability) || stability < 0 {
		return 0, fmt.Errorf("%w: stability %v", ErrInvalidState, stability)
	}
	if err := w.validate(); err != nil {
		return 0, err
	}
	if !(discountRate > 0 && discountRate < 1) {
		return 0, fmt.Errorf("%w: discount rate %v outside (0, 1)", ErrInvalidConfig, discountRate)
	}
	if !(decay > -1 && decay < 0) || !(factor > 0) {
		return 0, fmt.Errorf("%w: decay %v, factor %v", ErrInvalidParameters, decay, factor)
	}
	if stability == 0 {
		return 0, nil
	}

	k := integrand{alpha: stability / factor, decay: decay, logRate: -math.Log(discountRate), tol: tol}
	head, err := k.tail(w.Begin)
	if err != nil {
		return 0, err
	}
	if w.Open() {
		return head, nil
	}
	rest, err := k.tail(w.End)
	if err != nil {
		return 0, err
	}
	return head - math.Pow(discountRate, w.End-w.Begin)*rest, nil
}

// integrand holds the substitution alpha = S/factor, L = -ln γ.
type integrand struct {
	alpha   float64
	decay   float64
	logRate float64
	tol     float64
}

// tail returns the half-open integral from t, discounted relative to t:
//
//	exp((alpha+t)·L + ln Γ(decay+1, (alpha+t)·L) - decay·(ln alpha + ln L))
func (k integrand) tail(t float64) (float64, error) {
	shifted := k.alpha + t
	x0 := shifted * k.logRate
	lg, err := special.LogUpperIncompleteGamma(k.decay+1, x0, k.tol)
	if err != nil {
		return 0, fmt.Errorf("kgain: knowledge integral from %g: %w", t, err)
	}
	return math.Exp(x0 + lg - k.decay*(math.Log(k.alpha)+math.Log(k.logRate))), nil
}
