// Package simple contains a permissive rate policy for tests and unthrottled runs.
package simple

import "context"

// Policy never delays a request.
type Policy struct{}

// New creates a new Policy.
func New() *Policy {
	return &Policy{}
}

// Wait returns immediately.
func (Policy) Wait(_ context.Context, _ string) error {
	return nil
}
