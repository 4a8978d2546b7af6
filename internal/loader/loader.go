// Package loader fetches challenge data for the session controller. The
// networked HTTPLoader is the canonical implementation; StoreLoader serves
// the same contract straight from the database for in-process use.
package loader

import "fmt"

// LoadError wraps a transport or decode failure. It is distinct from a
// not-found: the UI offers a manual retry for these, never an automatic one.
type LoadError struct {
	Op  string
	Err error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("loader: %s: %v", e.Op, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}
