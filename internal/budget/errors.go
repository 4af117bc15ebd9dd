package budget

import "fmt"

// budgetExceededError signals a request that cannot fit the context window
// even with an empty prompt.
type budgetExceededError struct {
	requested int
	window    int
}

func (e budgetExceededError) Error() string {
	return fmt.Sprintf("context budget exceeded: %d tokens requested, window is %d", e.requested, e.window)
}

// IsBudgetExceeded reports whether err indicates an unviable context budget.
func IsBudgetExceeded(err error) bool {
	_, ok := err.(budgetExceededError)
	return ok
}
