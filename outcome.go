package kgain

// Branch is one weighted result of a simulated review.
type Branch struct {
	Rating      Rating      `json:"rating"`
	Probability float64     `json:"probability"`
	State       MemoryState `json:"state"`
}

// Outcome is the pair of branches produced by one simulated review. The
// probabilities sum to 1.
type Outcome struct {
	Forget Branch `json:"forget"`
	Recall Branch `json:"recall"`
}

// Branches returns the forget and recall branches in that order.
func (o Outcome) Branches() [2]Branch {
	return [2]Branch{o.Forget, o.Recall}
}

func (o *Outcome) set(i int, b Branch) {
	if i == 0 {
		o.Forget = b
	} else {
		o.Recall = b
	}
}
