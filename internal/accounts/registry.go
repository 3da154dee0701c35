package accounts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/odyssey-erp/ledger-analytics/internal/ledger"
)

var (
	// ErrUnmappedCategory is returned in strict mode when a category has no patterns.
	ErrUnmappedCategory = errors.New("accounts: unmapped category")
	// ErrOverlappingPatterns flags patterns shared by two categories of the same union.
	ErrOverlappingPatterns = errors.New("accounts: overlapping patterns")
)

// Tenant identifies whose chart-of-accounts mapping is read.
type Tenant int64

// DefaultTenant is used when no tenant is configured.
const DefaultTenant Tenant = 1

// Source resolves categories and cost natures to ledger predicates.
type Source interface {
	PatternsForCategory(ctx context.Context, tenant Tenant, category Category) (ledger.Predicate, error)
	PatternsForCostNature(ctx context.Context, tenant Tenant, nature Nature) (ledger.Predicate, error)
}

// Mapping is the full registry of one tenant.
type Mapping struct {
	Categories map[Category]ledger.Predicate
	Natures    map[Nature]ledger.Predicate
}

// Loader reads a tenant's mapping from storage.
type Loader interface {
	Load(ctx context.Context, tenant Tenant) (Mapping, error)
}

// StaticLoader serves a fixed mapping to every tenant.
type StaticLoader Mapping

// Load implements Loader.
func (s StaticLoader) Load(context.Context, Tenant) (Mapping, error) {
	return Mapping(s), nil
}

// Option configures a Registry.
type Option func(*Registry)

// WithStrict makes unmapped categories an error instead of an empty predicate.
func WithStrict(strict bool) Option {
	return func(r *Registry) { r.strict = strict }
}

// WithTTL sets how long a loaded mapping is reused.
func WithTTL(ttl time.Duration) Option {
	return func(r *Registry) { r.ttl = ttl }
}

// WithLogger sets the registry logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

type loaded struct {
	mapping Mapping
	at      time.Time
}

// Registry is a validating, tenant-scoped Source over a Loader.
type Registry struct {
	loader Loader
	strict bool
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	tenants map[Tenant]loaded
}

// NewRegistry constructs a Registry.
func NewRegistry(loader Loader, opts ...Option) *Registry {
	r := &Registry{
		loader:  loader,
		ttl:     5 * time.Minute,
		logger:  slog.Default(),
		now:     time.Now,
		tenants: make(map[Tenant]loaded),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewStatic builds a Registry over an in-memory mapping, validating it immediately.
func NewStatic(mapping Mapping, opts ...Option) (*Registry, error) {
	if err := Validate(mapping); err != nil {
		return nil, err
	}
	return NewRegistry(StaticLoader(mapping), opts...), nil
}

// PatternsForCategory implements Source.
func (r *Registry) PatternsForCategory(ctx context.Context, tenant Tenant, category Category) (ledger.Predicate, error) {
	m, err := r.mapping(ctx, tenant)
	if err != nil {
		return nil, err
	}
	pred := m.Categories[category]
	if pred.Empty() {
		if r.strict {
			return nil, fmt.Errorf("%w: %s", ErrUnmappedCategory, category)
		}
		r.logger.Debug("category has no patterns", slog.String("category", string(category)), slog.Int64("tenant", int64(tenant)))
	}
	return pred, nil
}

// PatternsForCostNature implements Source.
func (r *Registry) PatternsForCostNature(ctx context.Context, tenant Tenant, nature Nature) (ledger.Predicate, error) {
	m, err := r.mapping(ctx, tenant)
	if err != nil {
		return nil, err
	}
	pred := m.Natures[nature]
	if pred.Empty() && r.strict {
		return nil, fmt.Errorf("%w: nature %s", ErrUnmappedCategory, nature)
	}
	return pred, nil
}

// Union resolves several categories and concatenates their predicates.
func Union(ctx context.Context, src Source, tenant Tenant, categories ...Category) (ledger.Predicate, error) {
	preds := make([]ledger.Predicate, 0, len(categories))
	for _, c := range categories {
		p, err := src.PatternsForCategory(ctx, tenant, c)
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}
	return ledger.Union(preds...), nil
}

// Invalidate drops the cached mapping of a tenant.
func (r *Registry) Invalidate(tenant Tenant) {
	r.mu.Lock()
	delete(r.tenants, tenant)
	r.mu.Unlock()
}

func (r *Registry) mapping(ctx context.Context, tenant Tenant) (Mapping, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.tenants[tenant]; ok && (r.ttl <= 0 || r.now().Sub(l.at) < r.ttl) {
		return l.mapping, nil
	}
	m, err := r.loader.Load(ctx, tenant)
	if err != nil {
		return Mapping{}, fmt.Errorf("accounts: load tenant %d: %w", tenant, err)
	}
	if err := Validate(m); err != nil {
		return Mapping{}, err
	}
	r.tenants[tenant] = loaded{mapping: m, at: r.now()}
	return m, nil
}

// Validate enforces that categories merged into one union never share an account code,
// and that the cost natures overlap neither each other nor the payroll categories.
func Validate(m Mapping) error {
	names := make([]string, 0, len(validatedUnions))
	for name := range validatedUnions {
		names = append(names, name)
	}
	sort.Strings(names)

	var errs []error
	for _, name := range names {
		cats := validatedUnions[name]
		for i := 0; i < len(cats); i++ {
			for j := i + 1; j < len(cats); j++ {
				if a, b, ok := overlap(m.Categories[cats[i]], m.Categories[cats[j]]); ok {
					errs = append(errs, fmt.Errorf("%w: %s %s (%s) vs %s (%s)",
						ErrOverlappingPatterns, name, cats[i], a, cats[j], b))
				}
			}
		}
	}
	if a, b, ok := overlap(m.Natures[NatureDirect], m.Natures[NatureIndirect]); ok {
		errs = append(errs, fmt.Errorf("%w: cost natures %s vs %s", ErrOverlappingPatterns, a, b))
	}
	for _, nature := range []Nature{NatureDirect, NatureIndirect} {
		for _, cat := range natureAddends {
			if a, b, ok := overlap(m.Natures[nature], m.Categories[cat]); ok {
				errs = append(errs, fmt.Errorf("%w: operating_cost nature %s (%s) vs %s (%s)",
					ErrOverlappingPatterns, nature, a, cat, b))
			}
		}
	}
	return errors.Join(errs...)
}

func overlap(a, b ledger.Predicate) (ledger.Match, ledger.Match, bool) {
	for _, x := range a {
		for _, y := range b {
			if x.Pattern != "" && y.Pattern != "" && x.Overlaps(y) {
				return x, y, true
			}
		}
	}
	return ledger.Match{}, ledger.Match{}, false
}
