package kgain

// frame is one pending branch of the lookahead search.
type frame struct {
	state MemoryState
	avg   float64 // running mean gain along the chain
	depth int     // reviews in the chain so far
	prob  float64 // probability of reaching state
}

// lookahead estimates the expected mean gain of continuing to review while
// each further review raises the running mean. A chain stops when the next
// gain would not improve the mean, at the depth limit, or once its depth
// exceeds horizon. The tree is walked with an explicit stack.
func (e *Estimator) lookahead(m Model, root MemoryState, elapsedDays, horizon float64, gain func(MemoryState) (float64, error)) (float64, error) {
	g0, err := gain(root)
	if err != nil {
		return 0, err
	}
	if e.maxDepth == 0 {
		return g0, nil
	}

	stack := []frame{{state: root, avg: g0, depth: 1, prob: 1}}
	var result float64

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		for _, b := range e.branches(m, f.state, elapsedDays) {
			p := f.prob * b.Probability
			next, err := gain(b.State)
			if err != nil {
				return 0, err
			}
			if next <= f.avg {
				result += p * f.avg
				continue
			}
			avg := (f.avg*float64(f.depth) + next) / float64(f.depth+1)
			if f.depth+1 < e.maxDepth && float64(f.depth) <= horizon {
				stack = append(stack, frame{state: b.State, avg: avg, depth: f.depth + 1, prob: p})
			} else {
				result += p * avg
			}
		}
	}
	return result, nil
}
