package taxrule

import "context"

// Source supplies the current tax rules. Implementations may reload rules at
// any time; callers must not cache the returned slice.
type Source interface {
	// Match returns every rule applying to the jurisdiction: the exact key
	// and the country wildcard.
	Match(ctx context.Context, country, planType string) ([]*TaxRule, error)
}
