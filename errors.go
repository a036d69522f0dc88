package fallcache

import (
	"fmt"
	"sort"
	"strings"
)

// BatchError reports which keys of a SetMultiple failed. Keys absent from
// Failed were stored successfully; a single bad key never blocks the rest of
// the batch.
type BatchError struct {
	Failed map[string]error
}

func (e *BatchError) Error() string {
	keys := make([]string, 0, len(e.Failed))
	for k := range e.Failed {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return fmt.Sprintf("fallcache: %d key(s) failed: %s", len(keys), strings.Join(keys, ", "))
}

func (e *BatchError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failed))
	for _, err := range e.Failed {
		errs = append(errs, err)
	}
	return errs
}
