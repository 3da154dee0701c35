package metrics

import (
	"context"

	"github.com/odyssey-erp/ledger-analytics/internal/accounts"
	"github.com/odyssey-erp/ledger-analytics/internal/ledger"
)

// Cost is the total of every cost family, debit minus credit.
func (c *Calculator) Cost(ctx context.Context, p ledger.Period) float64 {
	return ledger.Round2(c.cost(ctx, p))
}

func (c *Calculator) cost(ctx context.Context, p ledger.Period) float64 {
	return c.flow(ctx, "cost", p, ledger.DebitMinusCredit, accounts.CostCategories...)
}

// DirectCost sums every account tagged with the direct cost nature, whatever its
// category.
func (c *Calculator) DirectCost(ctx context.Context, p ledger.Period) float64 {
	return ledger.Round2(c.natureCost(ctx, p, accounts.NatureDirect))
}

// IndirectCost sums every account tagged with the indirect cost nature.
func (c *Calculator) IndirectCost(ctx context.Context, p ledger.Period) float64 {
	return ledger.Round2(c.natureCost(ctx, p, accounts.NatureIndirect))
}

func (c *Calculator) natureCost(ctx context.Context, p ledger.Period, n accounts.Nature) float64 {
	metric := "cost_nature_" + string(n)
	v := c.agg.Aggregate(ctx, c.nature(ctx, metric, n), p, ledger.DebitMinusCredit, ledger.ExcludeBoth)
	return c.nonNegative(metric, p, v)
}

// OperatingCost is direct and indirect cost plus payroll and social charges.
func (c *Calculator) OperatingCost(ctx context.Context, p ledger.Period) float64 {
	return ledger.Round2(c.operatingCost(ctx, p))
}

func (c *Calculator) operatingCost(ctx context.Context, p ledger.Period) float64 {
	return c.natureCost(ctx, p, accounts.NatureDirect) +
		c.natureCost(ctx, p, accounts.NatureIndirect) +
		c.flow(ctx, "payroll", p, ledger.DebitMinusCredit, accounts.PayrollCategories...)
}

// Personnel returns wages only; Payroll adds social charges.
func (c *Calculator) Personnel(ctx context.Context, p ledger.Period) float64 {
	return ledger.Round2(c.personnel(ctx, p))
}

func (c *Calculator) personnel(ctx context.Context, p ledger.Period) float64 {
	return c.flow(ctx, "personnel", p, ledger.DebitMinusCredit, accounts.Personnel)
}

// Payroll returns wages plus social charges.
func (c *Calculator) Payroll(ctx context.Context, p ledger.Period) float64 {
	return ledger.Round2(c.flow(ctx, "payroll", p, ledger.DebitMinusCredit, accounts.PayrollCategories...))
}

// Depreciation returns depreciation charges.
func (c *Calculator) Depreciation(ctx context.Context, p ledger.Period) float64 {
	return ledger.Round2(c.flow(ctx, "depreciation", p, ledger.DebitMinusCredit, accounts.Depreciation))
}

// Taxes returns income and other taxes.
func (c *Calculator) Taxes(ctx context.Context, p ledger.Period) float64 {
	return ledger.Round2(c.flow(ctx, "taxes", p, ledger.DebitMinusCredit, accounts.Taxes))
}

// FinancialCharges sums the magnitude of every financial charge row.
func (c *Calculator) FinancialCharges(ctx context.Context, p ledger.Period) float64 {
	return ledger.Round2(c.financialCharges(ctx, p))
}

func (c *Calculator) financialCharges(ctx context.Context, p ledger.Period) float64 {
	return c.flow(ctx, "financial_charges", p, ledger.AbsDebitMinusCredit, accounts.FinancialCharges)
}

// SupplierPurchases returns purchases from suppliers, the DPO denominator.
func (c *Calculator) SupplierPurchases(ctx context.Context, p ledger.Period) float64 {
	return ledger.Round2(c.purchases(ctx, p))
}

func (c *Calculator) purchases(ctx context.Context, p ledger.Period) float64 {
	return c.flow(ctx, "purchases", p, ledger.DebitMinusCredit, accounts.PurchaseCategories...)
}

// OpeningInventory is the inventory carried in on the first day of the period. The
// opening carry-forward row itself is excluded so only movements booked that day
// count.
func (c *Calculator) OpeningInventory(ctx context.Context, p ledger.Period) float64 {
	return ledger.Round2(c.openingInventory(ctx, p))
}

func (c *Calculator) openingInventory(ctx context.Context, p ledger.Period) float64 {
	day := ledger.Period{Start: p.Start, End: p.Start}
	pred := c.union(ctx, "opening_inventory", accounts.OpeningInventory)
	return c.agg.Aggregate(ctx, pred, day, ledger.DebitOnly, ledger.ExcludeOpening)
}

// ClosingInventory is the inventory recorded on the last day of the period, closing
// carry-forward rows excluded.
func (c *Calculator) ClosingInventory(ctx context.Context, p ledger.Period) float64 {
	return ledger.Round2(c.closingInventory(ctx, p))
}

func (c *Calculator) closingInventory(ctx context.Context, p ledger.Period) float64 {
	day := ledger.Period{Start: p.End, End: p.End}
	pred := c.union(ctx, "closing_inventory", accounts.ClosingInventory)
	return c.agg.Aggregate(ctx, pred, day, ledger.CreditOnly, ledger.ExcludeClosing)
}

// COGS is opening inventory plus direct purchases minus closing inventory.
func (c *Calculator) COGS(ctx context.Context, p ledger.Period) float64 {
	return ledger.Round2(c.cogs(ctx, p))
}

func (c *Calculator) cogs(ctx context.Context, p ledger.Period) float64 {
	if !c.valid("cogs", p) {
		return 0
	}
	return c.openingInventory(ctx, p) + c.natureCost(ctx, p, accounts.NatureDirect) - c.closingInventory(ctx, p)
}
