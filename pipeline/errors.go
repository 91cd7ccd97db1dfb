package pipeline

import (
	"fmt"
	"strings"
)

// ItemError is the failure of one batch item.
type ItemError struct {
	Index int
	Err   error
}

// BatchError reports failed items of an InvokeBatch call, ordered by index.
type BatchError struct {
	Policy BatchPolicy
	Total  int
	Items  []ItemError
}

func (e *BatchError) Error() string {
	if len(e.Items) == 0 {
		return "batch failed"
	}
	first := e.Items[0]
	if len(e.Items) == 1 {
		return fmt.Sprintf("batch item %d of %d failed: %v", first.Index, e.Total, first.Err)
	}
	idx := make([]string, len(e.Items))
	for i, it := range e.Items {
		idx[i] = fmt.Sprint(it.Index)
	}
	return fmt.Sprintf("%d of %d batch items failed (indexes %s); first: %v",
		len(e.Items), e.Total, strings.Join(idx, ","), first.Err)
}

// Unwrap exposes every item error to errors.Is and errors.As.
func (e *BatchError) Unwrap() []error {
	out := make([]error, len(e.Items))
	for i, it := range e.Items {
		out[i] = it.Err
	}
	return out
}

// Failed returns the failed indexes.
func (e *BatchError) Failed() []int {
	out := make([]int, len(e.Items))
	for i, it := range e.Items {
		out[i] = it.Index
	}
	return out
}

// ErrorAt returns the error recorded for index, or nil.
func (e *BatchError) ErrorAt(index int) error {
	for _, it := range e.Items {
		if it.Index == index {
			return it.Err
		}
	}
	return nil
}
