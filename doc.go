// Package kgain estimates the expected long-term knowledge gained by
// reviewing a spaced-repetition item now, so that a scheduler can present
// the most valuable item next.
//
// An item's memory is a MemoryState (difficulty, stability). A Model binds
// one FSRS parameter vector (17, 19 or 21 weights for V4, V5 or V6) and
// provides the forgetting curve and a two-outcome review simulator. A first
// review of an unseen item is instead weighted over all four ratings by
// EstimatorConfig.FirstRatings. The
// knowledge an item holds over a window is the discounted integral of its
// retrievability, evaluated in closed form through the upper incomplete
// gamma function (see KnowledgeIntegral).
//
// An Estimator turns those pieces into ranking scores: the single-step gain
// (ExpKnowledgeGain), a greedy multi-review lookahead
// (ExpKnowledgeGainFuture), and a variant for items whose next review is
// already fixed (ExpDeferredGain, ExpDeferredGainFuture). Simulations and
// gains are memoized in bounded tables; create one Estimator per ranking
// pass.
//
// Basic usage:
//
//	m, err := kgain.NewModel(weights)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	est, err := kgain.NewEstimator(kgain.EstimatorConfig{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	score, err := est.Score(m, kgain.Query{
//	    State:       kgain.MemoryState{Difficulty: 5, Stability: 10},
//	    ElapsedDays: 12,
//	})
package kgain
