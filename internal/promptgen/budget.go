package promptgen

// Estimator converts text to a token cost. The default is character
// length over four, rounded up. Accuracy is not required, only
// consistency within one render.
type Estimator func(text string) int

// DefaultEstimator is the ceil(len/4) heuristic.
func DefaultEstimator(text string) int {
	return (len(text) + 3) / 4
}

// BudgetManager tracks a global token ceiling, a stack of nested local
// ceilings, and named floor reservations that withhold capacity for
// later render phases. One manager belongs to exactly one render call
// and must never be shared across concurrent renders.
type BudgetManager struct {
	max        int // <= 0 means unbounded
	consumed   int
	scopes     []int
	floors     map[string]int
	floorTotal int
	estimate   Estimator
}

// NewBudgetManager creates a manager with a global ceiling. A ceiling of
// zero or less means unbounded.
func NewBudgetManager(maxTokens int) *BudgetManager {
	return &BudgetManager{
		max:      maxTokens,
		floors:   make(map[string]int),
		estimate: DefaultEstimator,
	}
}

// SetEstimator replaces the token estimator. Call before rendering.
func (m *BudgetManager) SetEstimator(e Estimator) {
	if e != nil {
		m.estimate = e
	}
}

// Estimate returns the token cost of a piece of text.
func (m *BudgetManager) Estimate(text string) int {
	return m.estimate(text)
}

// Consumed returns the tokens consumed so far.
func (m *BudgetManager) Consumed() int {
	return m.consumed
}

// HasAny reports whether any unreserved global capacity remains. Floor
// reservations withhold capacity here, but not in CanFit.
func (m *BudgetManager) HasAny() bool {
	if m.max <= 0 {
		return true
	}
	return m.consumed+m.floorTotal < m.max
}

// CanFit reports whether text fits the global ceiling and every active
// local scope. Floors are deliberately not checked: a floor only hides
// capacity from HasAny, it does not block the phase that reserved it.
func (m *BudgetManager) CanFit(text string) bool {
	est := m.estimate(text)
	if m.max > 0 && m.consumed+est > m.max {
		return false
	}
	for _, remaining := range m.scopes {
		if est > remaining {
			return false
		}
	}
	return true
}

// Consume deducts the cost of text from the global counter and every
// active local scope, clamping scopes at zero. Returns the estimate.
func (m *BudgetManager) Consume(text string) int {
	est := m.estimate(text)
	m.consumed += est
	for i := range m.scopes {
		m.scopes[i] -= est
		if m.scopes[i] < 0 {
			m.scopes[i] = 0
		}
	}
	return est
}

// WithNodeBudget runs fn under an additional local ceiling. An absent or
// unbounded budget runs fn without pushing a scope, so nested budgets
// compose with the global ceiling without double counting.
func (m *BudgetManager) WithNodeBudget(b *Budget, fn func()) {
	if b == nil || b.MaxTokens <= 0 {
		fn()
		return
	}
	m.scopes = append(m.scopes, b.MaxTokens)
	defer func() {
		m.scopes = m.scopes[:len(m.scopes)-1]
	}()
	fn()
}

// ReserveFloor sets aside capacity under a name so greedy filling cannot
// starve a later phase. Reservations accumulate per name.
func (m *BudgetManager) ReserveFloor(name string, tokens int) {
	if tokens <= 0 {
		return
	}
	m.floors[name] += tokens
	m.floorTotal += tokens
}

// ReleaseFloor returns up to tokens of a named reservation to general
// use, once the reserving phase has claimed or forfeited it.
func (m *BudgetManager) ReleaseFloor(name string, tokens int) {
	if tokens <= 0 {
		return
	}
	held := m.floors[name]
	if tokens > held {
		tokens = held
	}
	if tokens == 0 {
		return
	}
	m.floors[name] -= tokens
	m.floorTotal -= tokens
	if m.floors[name] == 0 {
		delete(m.floors, name)
	}
}
