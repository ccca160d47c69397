package engine

import (
	"context"
	"net/http"

	"github.com/roach88/provcheck/internal/compare"
	"github.com/roach88/provcheck/internal/executor"
	"github.com/roach88/provcheck/internal/inventory"
)

// Env is the read-only context shared by every check in a run.
type Env struct {
	Conn   inventory.Connection
	Remote executor.Runner
	HTTP   *http.Client
}

// Predicate evaluates one check. It returns an explicit outcome; a non-nil
// error means the predicate itself could not complete.
type Predicate func(ctx context.Context, env Env) (compare.Outcome, error)

// Check is a single named, weighted assertion.
type Check struct {
	// ID is unique within a run and becomes the record's testid.
	ID string

	// Weight is the maximum marks awarded when the predicate passes.
	Weight int

	Predicate Predicate
}

// Registry is an ordered set of checks with unique identifiers.
// Checks are registered before a run and never mutated during it.
type Registry struct {
	checks []Check
	ids    map[string]struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{ids: make(map[string]struct{})}
}

// Register appends c. Returns a *RegistrationError for an empty or
// duplicate ID, a non-positive weight or a nil predicate.
func (r *Registry) Register(c Check) error {
	switch {
	case c.ID == "":
		return &RegistrationError{Code: ErrCodeMissingID, Message: "check id is required"}
	case c.Weight <= 0:
		return &RegistrationError{Code: ErrCodeInvalidWeight, CheckID: c.ID, Message: "weight must be positive"}
	case c.Predicate == nil:
		return &RegistrationError{Code: ErrCodeMissingPredicate, CheckID: c.ID, Message: "predicate is required"}
	}
	if _, dup := r.ids[c.ID]; dup {
		return &RegistrationError{Code: ErrCodeDuplicateID, CheckID: c.ID, Message: "check id already registered"}
	}

	r.ids[c.ID] = struct{}{}
	r.checks = append(r.checks, c)
	return nil
}

// Checks returns the registered checks in registration order.
func (r *Registry) Checks() []Check {
	return append([]Check(nil), r.checks...)
}

// Len returns the number of registered checks.
func (r *Registry) Len() int {
	return len(r.checks)
}

// MaximumScore returns the sum of registered weights.
func (r *Registry) MaximumScore() int {
	total := 0
	for _, c := range r.checks {
		total += c.Weight
	}
	return total
}
