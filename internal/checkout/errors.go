package checkout

import (
	"errors"
	"fmt"
)

var ErrTransactionFailed = errors.New("checkout transaction failed")

// InsufficientStockError names the first cart line that cannot be fulfilled.
type InsufficientStockError struct {
	ProductID   int64
	ProductName string
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("Not enough stock for %s", e.ProductName)
}
