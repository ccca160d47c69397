package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/provcheck/internal/compare"
	"github.com/roach88/provcheck/internal/engine"
)

// hostPlaceholder in an HTTP URL is replaced with the resolved host.
const hostPlaceholder = "{host}"

// Compile turns the suite's check descriptors into engine checks, in
// declaration order.
func Compile(s *Suite) ([]engine.Check, error) {
	reg := engine.NewRegistry()
	for i, spec := range s.Checks {
		weight := spec.MaximumMarks
		if weight == 0 {
			weight = DefaultMaximumMarks
		}
		check := engine.Check{
			ID:        spec.ID,
			Weight:    weight,
			Predicate: predicateFor(spec),
		}
		if err := reg.Register(check); err != nil {
			return nil, fmt.Errorf("checks[%d]: %w", i, err)
		}
	}
	return reg.Checks(), nil
}

// predicateFor evaluates the assertions in order and stops at the first
// failure.
func predicateFor(spec CheckSpec) engine.Predicate {
	asserts := append([]Assertion(nil), spec.Assert...)
	passMessage := spec.PassMessage

	return func(ctx context.Context, env engine.Env) (compare.Outcome, error) {
		messages := make([]string, 0, len(asserts))
		for _, a := range asserts {
			out, err := evaluate(ctx, env, a)
			if err != nil {
				return compare.Outcome{}, err
			}
			if !out.Passed {
				return out, nil
			}
			messages = append(messages, out.Message)
		}
		if passMessage != "" {
			return compare.Pass("%s", passMessage), nil
		}
		return compare.Pass("%s", strings.Join(messages, "; ")), nil
	}
}

// evaluate dispatches a single assertion to its comparator.
func evaluate(ctx context.Context, env engine.Env, a Assertion) (compare.Outcome, error) {
	switch a.Kind {
	case KindConnectivity:
		return compare.Connectivity(ctx, env.Remote), nil
	case KindExists:
		kind := compare.PathKind(a.Type)
		if kind == "" {
			kind = compare.PathAny
		}
		return compare.Exists(ctx, env.Remote, a.Path, kind), nil
	case KindOwnership:
		format := a.Format
		if format == "" {
			format = compare.DefaultStatFormat
		}
		return compare.Ownership(ctx, env.Remote, a.Path, format, a.Expected), nil
	case KindVersion:
		match, err := compare.ParseMatch(a.Match)
		if err != nil {
			return compare.Outcome{}, err
		}
		return compare.Version(ctx, env.Remote, a.Command, a.Expected, match), nil
	case KindTemplate:
		return compare.TemplateDiff(ctx, env.Remote, a.Template, a.Path), nil
	case KindService:
		return compare.ServiceState(ctx, env.Remote, a.Unit, a.Active, a.Enabled), nil
	case KindHTTP:
		return compare.HTTP(ctx, env.HTTP, compare.HTTPExpect{
			URL:      strings.ReplaceAll(a.URL, hostPlaceholder, env.Conn.Host),
			Status:   a.Status,
			Contains: a.Contains,
			Body:     a.Body,
		}), nil
	case KindPackages:
		return compare.PackagesInstalled(ctx, env.Remote, a.Packages), nil
	case KindPackageVersions:
		return compare.PackageVersions(ctx, env.Remote, a.Versions), nil
	default:
		return compare.Outcome{}, fmt.Errorf("unknown assertion kind %q", a.Kind)
	}
}
