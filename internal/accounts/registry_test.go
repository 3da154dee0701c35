package accounts

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/ledger-analytics/internal/ledger"
)

type countingLoader struct {
	mapping Mapping
	calls   int
}

func (l *countingLoader) Load(context.Context, Tenant) (Mapping, error) {
	l.calls++
	return l.mapping, nil
}

func TestValidateRejectsOverlapInsideUnion(t *testing.T) {
	m := Mapping{Categories: map[Category]ledger.Predicate{
		SalesRevenue:   {ledger.PrefixOf("70")},
		ServiceRevenue: {ledger.Exact("7010")},
	}}
	err := Validate(m)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrOverlappingPatterns))
	require.Contains(t, err.Error(), "revenue")
}

func TestValidateAllowsOverlapAcrossUnrelatedCategories(t *testing.T) {
	m := Mapping{
		Categories: map[Category]ledger.Predicate{
			SalesRevenue:        {ledger.PrefixOf("70")},
			CustomerReceivables: {ledger.PrefixOf("70")},
		},
		Natures: map[Nature]ledger.Predicate{
			NatureDirect:   {ledger.PrefixOf("60")},
			NatureIndirect: {ledger.PrefixOf("61")},
		},
	}
	require.NoError(t, Validate(m))
}

func TestValidateRejectsNatureOverlap(t *testing.T) {
	m := Mapping{Natures: map[Nature]ledger.Predicate{
		NatureDirect:   {ledger.PrefixOf("6")},
		NatureIndirect: {ledger.PrefixOf("61")},
	}}
	require.ErrorIs(t, Validate(m), ErrOverlappingPatterns)
}

func TestValidateRejectsPayrollInsideCostNature(t *testing.T) {
	m := Mapping{
		Categories: map[Category]ledger.Predicate{
			Personnel: {ledger.PrefixOf("6010")},
		},
		Natures: map[Nature]ledger.Predicate{
			NatureDirect:   {ledger.PrefixOf("60")},
			NatureIndirect: {ledger.PrefixOf("61")},
		},
	}
	err := Validate(m)
	require.ErrorIs(t, err, ErrOverlappingPatterns)
	require.Contains(t, err.Error(), "operating_cost")
}

func TestValidateRejectsEquityOverlap(t *testing.T) {
	m := Mapping{Categories: map[Category]ledger.Predicate{
		ShareCapital: {ledger.PrefixOf("10")},
		Equity:       {ledger.PrefixOf("1")},
	}}
	err := Validate(m)
	require.ErrorIs(t, err, ErrOverlappingPatterns)
	require.Contains(t, err.Error(), "equity")
}

func TestRegistryCachesAndUnions(t *testing.T) {
	loader := &countingLoader{mapping: Mapping{Categories: map[Category]ledger.Predicate{
		SalesRevenue:   {ledger.PrefixOf("70")},
		ServiceRevenue: {ledger.PrefixOf("71")},
	}}}
	reg := NewRegistry(loader)
	ctx := context.Background()

	pred, err := Union(ctx, reg, DefaultTenant, SalesRevenue, ServiceRevenue, CashReceipts)
	require.NoError(t, err)
	require.Len(t, pred, 2)
	require.True(t, pred.Matches("7105"))
	require.Equal(t, 1, loader.calls)

	reg.Invalidate(DefaultTenant)
	_, err = reg.PatternsForCategory(ctx, DefaultTenant, SalesRevenue)
	require.NoError(t, err)
	require.Equal(t, 2, loader.calls)
}

func TestRegistryStrictMode(t *testing.T) {
	reg, err := NewStatic(Mapping{}, WithStrict(true))
	require.NoError(t, err)
	_, err = reg.PatternsForCategory(context.Background(), DefaultTenant, Taxes)
	require.ErrorIs(t, err, ErrUnmappedCategory)

	lenient, err := NewStatic(Mapping{})
	require.NoError(t, err)
	pred, err := lenient.PatternsForCategory(context.Background(), DefaultTenant, Taxes)
	require.NoError(t, err)
	require.True(t, pred.Empty())
}
