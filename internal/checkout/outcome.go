package checkout

import "github.com/trinislearning/hit339/internal/domain"

type Outcome string

const (
	OutcomeEmptyCart  Outcome = "EMPTY_CART"
	OutcomeOutOfStock Outcome = "OUT_OF_STOCK"
	OutcomeCommitted  Outcome = "COMMITTED"
	OutcomeFailed     Outcome = "FAILED"
)

// String representation (for logging)
func (o Outcome) String() string {
	return string(o)
}

// Result is returned for the outcomes that are not errors.
// Order is set only when Outcome is OutcomeCommitted.
type Result struct {
	Outcome Outcome
	Order   *domain.Order
}
