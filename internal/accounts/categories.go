// Package accounts maps semantic account categories and cost natures to ledger predicates.
package accounts

// Category names a semantic group of chart-of-accounts codes. Values are the registry keys
// stored in account_category_patterns.
type Category string

// Revenue categories.
const (
	SalesRevenue        Category = "RICAVI_VENDITE"
	ServiceRevenue      Category = "RICAVI_PRESTAZIONI"
	CashReceipts        Category = "RICAVI_CORRISPETTIVI"
	CapitalGains        Category = "PLUSVALENZE_CESSIONI"
	OtherGains          Category = "ALTRE_PLUSVALENZE"
	ExtraordinaryIncome Category = "SOPRAVVENIENZE_ATTIVE"
)

// Cost categories.
const (
	DirectCosts          Category = "COSTI_DIRETTI"
	IndirectCosts        Category = "COSTI_INDIRETTI"
	RawMaterials         Category = "COSTI_MATERIE_PRIME"
	Processing           Category = "COSTI_LAVORAZIONI"
	Services             Category = "COSTI_SERVIZI"
	Personnel            Category = "COSTI_PERSONALE"
	SocialCharges        Category = "ONERI_SOCIALI"
	SundryCharges        Category = "ONERI_VARI"
	Depreciation         Category = "AMMORTAMENTI"
	WriteDowns           Category = "SVALUTAZIONI"
	CapitalLosses        Category = "MINUSVALENZE_CESSIONI"
	OtherLosses          Category = "ALTRE_MINUSVALENZE"
	ExtraordinaryCharges Category = "SOPRAVVENIENZE_PASSIVE"
	Taxes                Category = "IMPOSTE_TASSE"
	FinancialCharges     Category = "ONERI_FINANZIARI"
	ITSoftware           Category = "COSTI_IT_SOFTWARE"
	Marketing            Category = "COSTI_MARKETING"
	RentUtilities        Category = "COSTI_AFFITTI_UTENZE"
)

// Balance-sheet categories.
const (
	OpeningInventory       Category = "RIMANENZE_INIZIALI"
	ClosingInventory       Category = "RIMANENZE_FINALI"
	FixedAssets            Category = "IMMOBILIZZAZIONI"
	CustomerReceivables    Category = "CREDITI_CLIENTI"
	ShareholderReceivables Category = "CREDITI_VERSO_SOCI"
	TaxReceivables         Category = "CREDITI_TRIBUTARI"
	OtherReceivables       Category = "ALTRI_CREDITI"
	BankLiquidity          Category = "LIQUIDITA_BANCHE"
	CashLiquidity          Category = "LIQUIDITA_CASSA"
	AccruedIncome          Category = "RATEI_ATTIVI"
	PrepaidExpenses        Category = "RISCONTI_ATTIVI"
	ShareCapital           Category = "CAPITALE_SOCIALE"
	Equity                 Category = "PATRIMONIO_NETTO"
	SupplierPayables       Category = "DEBITI_FORNITORI"
	BankPayables           Category = "DEBITI_BANCHE"
	ShareholderPayables    Category = "DEBITI_VERSO_SOCI"
	OtherPayables          Category = "ALTRI_DEBITI"
	AccruedExpenses        Category = "RATEI_PASSIVI"
	DeferredIncome         Category = "RISCONTI_PASSIVI"
)

// Nature is the direct/indirect cost axis, independent of category.
type Nature string

const (
	NatureDirect   Nature = "diretto"
	NatureIndirect Nature = "indiretto"
)

// Category unions consumed by the calculators. Patterns inside one union must not overlap.
var (
	RevenueCategories = []Category{
		SalesRevenue, ServiceRevenue, CashReceipts, CapitalGains, OtherGains, ExtraordinaryIncome,
	}
	CostCategories = []Category{
		DirectCosts, IndirectCosts, RawMaterials, Processing, Services, Personnel, SocialCharges,
		SundryCharges, Depreciation, WriteDowns, CapitalLosses, OtherLosses, ExtraordinaryCharges,
		Taxes, FinancialCharges, ITSoftware, Marketing, RentUtilities,
	}
	InvestedCapitalCategories = []Category{
		FixedAssets, CustomerReceivables, ShareholderReceivables, TaxReceivables, OtherReceivables,
		ClosingInventory, BankLiquidity, CashLiquidity, AccruedIncome, PrepaidExpenses,
	}
	CurrentAssetCategories = []Category{
		BankLiquidity, CashLiquidity, CustomerReceivables, TaxReceivables, OtherReceivables,
		AccruedIncome, PrepaidExpenses,
	}
	QuickAssetCategories = []Category{
		BankLiquidity, CashLiquidity, CustomerReceivables, TaxReceivables, OtherReceivables,
	}
	CurrentLiabilityCategories = []Category{
		SupplierPayables, OtherPayables, AccruedExpenses, DeferredIncome,
	}
	DebtCategories = []Category{
		SupplierPayables, BankPayables, ShareholderPayables, FinancialCharges, AccruedExpenses, DeferredIncome,
	}
	// PurchaseCategories feed DPO.
	PurchaseCategories = []Category{
		DirectCosts, IndirectCosts, RawMaterials, Processing, Services,
	}
	// CustomerRevenueCategories feed customer profitability and retention.
	CustomerRevenueCategories = []Category{SalesRevenue, ServiceRevenue}
	// SupplierCostCategories feed the supplier ABC analysis.
	SupplierCostCategories = []Category{DirectCosts, RawMaterials, Processing, IndirectCosts, Services}
	// TradingRevenueCategories feed DSO and the growth series.
	TradingRevenueCategories = []Category{SalesRevenue, ServiceRevenue, CashReceipts}
	// EquityCategories are summed into effective equity.
	EquityCategories = []Category{ShareCapital, Equity}
	// PayrollCategories are added to the two cost natures in operating cost.
	PayrollCategories = []Category{Personnel, SocialCharges}
	// GrowthCostCategories feed the growth series.
	GrowthCostCategories = []Category{
		DirectCosts, IndirectCosts, RawMaterials, Processing, Services, Personnel, SocialCharges, SundryCharges,
	}
)

// validatedUnions lists the unions checked for overlap at load time.
var validatedUnions = map[string][]Category{
	"revenue":             RevenueCategories,
	"cost":                CostCategories,
	"invested_capital":    InvestedCapitalCategories,
	"current_assets":      CurrentAssetCategories,
	"current_liabilities": CurrentLiabilityCategories,
	"debts":               DebtCategories,
	"equity":              EquityCategories,
	"payroll":             PayrollCategories,
}

// natureAddends are summed with both cost natures in operating cost, so they must not
// overlap either nature.
var natureAddends = PayrollCategories
