// Package concepts maps abstract financial statement line items onto the raw
// XBRL concepts different filers use for them, and resolves values for a
// given period from a company-facts database.
package concepts

// Statement groups metrics the way they are laid out in a quarter bundle.
type Statement string

const (
	Income   Statement = "income"
	Balance  Statement = "balance"
	CashFlow Statement = "cash_flow"
	Shares   Statement = "shares"
)

// Kind tells whether a metric is reported over a span or at an instant.
type Kind string

const (
	Duration Kind = "duration"
	Instant  Kind = "instant"
)

// Units as they appear in companyfacts.
const (
	UnitUSD         = "USD"
	UnitUSDPerShare = "USD/shares"
	UnitShares      = "shares"
)

// MetricSpec describes one abstract metric. Concepts are ordered from most
// specific to most generic; a name may carry a "taxonomy:" prefix.
type MetricSpec struct {
	Key       string
	Statement Statement
	Unit      string
	Kind      Kind
	Concepts  []string
}

var table = []MetricSpec{
	// Income statement
	{"revenue", Income, UnitUSD, Duration, []string{
		"RevenueFromContractWithCustomerExcludingAssessedTax",
		"Revenues",
		"SalesRevenueNet",
		"RevenueFromContractWithCustomerIncludingAssessedTax",
	}},
	{"cost_of_revenue", Income, UnitUSD, Duration, []string{"CostOfRevenue", "CostOfGoodsAndServicesSold", "CostOfGoodsSold"}},
	{"gross_profit", Income, UnitUSD, Duration, []string{"GrossProfit"}},
	{"research_and_development", Income, UnitUSD, Duration, []string{
		"ResearchAndDevelopmentExpense",
		"ResearchAndDevelopmentExpenseExcludingAcquiredInProcessCost",
	}},
	{"sga", Income, UnitUSD, Duration, []string{"SellingGeneralAndAdministrativeExpense", "GeneralAndAdministrativeExpense"}},
	{"operating_expenses", Income, UnitUSD, Duration, []string{"OperatingExpenses", "CostsAndExpenses"}},
	{"operating_income", Income, UnitUSD, Duration, []string{"OperatingIncomeLoss"}},
	{"interest_expense", Income, UnitUSD, Duration, []string{"InterestExpense", "InterestExpenseNonoperating", "InterestExpenseDebt"}},
	{"other_income", Income, UnitUSD, Duration, []string{"NonoperatingIncomeExpense", "OtherNonoperatingIncomeExpense"}},
	{"pretax_income", Income, UnitUSD, Duration, []string{
		"IncomeLossFromContinuingOperationsBeforeIncomeTaxesExtraordinaryItemsNoncontrollingInterest",
		"IncomeLossFromContinuingOperationsBeforeIncomeTaxesMinorityInterestAndIncomeLossFromEquityMethodInvestments",
		"IncomeLossFromContinuingOperationsBeforeIncomeTaxesDomestic",
	}},
	{"income_tax", Income, UnitUSD, Duration, []string{"IncomeTaxExpenseBenefit"}},
	{"net_income", Income, UnitUSD, Duration, []string{"NetIncomeLoss", "ProfitLoss", "NetIncomeLossAvailableToCommonStockholdersBasic"}},
	{"eps_basic", Income, UnitUSDPerShare, Duration, []string{"EarningsPerShareBasic", "EarningsPerShareBasicAndDiluted"}},
	{"eps_diluted", Income, UnitUSDPerShare, Duration, []string{"EarningsPerShareDiluted", "EarningsPerShareBasicAndDiluted"}},

	// Balance sheet
	{"cash", Balance, UnitUSD, Instant, []string{
		"CashAndCashEquivalentsAtCarryingValue",
		"CashCashEquivalentsRestrictedCashAndRestrictedCashEquivalents",
		"Cash",
	}},
	{"short_term_investments", Balance, UnitUSD, Instant, []string{
		"ShortTermInvestments",
		"MarketableSecuritiesCurrent",
		"AvailableForSaleSecuritiesDebtSecuritiesCurrent",
	}},
	{"accounts_receivable", Balance, UnitUSD, Instant, []string{"AccountsReceivableNetCurrent", "ReceivablesNetCurrent"}},
	{"inventory", Balance, UnitUSD, Instant, []string{"InventoryNet"}},
	{"other_current_assets", Balance, UnitUSD, Instant, []string{"OtherAssetsCurrent", "PrepaidExpenseAndOtherAssetsCurrent"}},
	{"total_current_assets", Balance, UnitUSD, Instant, []string{"AssetsCurrent"}},
	{"ppe_net", Balance, UnitUSD, Instant, []string{
		"PropertyPlantAndEquipmentNet",
		"PropertyPlantAndEquipmentAndFinanceLeaseRightOfUseAssetAfterAccumulatedDepreciationAndAmortization",
	}},
	{"goodwill", Balance, UnitUSD, Instant, []string{"Goodwill"}},
	{"intangibles", Balance, UnitUSD, Instant, []string{"IntangibleAssetsNetExcludingGoodwill", "FiniteLivedIntangibleAssetsNet"}},
	{"total_assets", Balance, UnitUSD, Instant, []string{"Assets"}},
	{"accounts_payable", Balance, UnitUSD, Instant, []string{"AccountsPayableCurrent", "AccountsPayableAndAccruedLiabilitiesCurrent"}},
	{"accrued_liabilities", Balance, UnitUSD, Instant, []string{"AccruedLiabilitiesCurrent", "EmployeeRelatedLiabilitiesCurrent"}},
	{"deferred_revenue", Balance, UnitUSD, Instant, []string{"ContractWithCustomerLiabilityCurrent", "DeferredRevenueCurrent"}},
	{"total_current_liabilities", Balance, UnitUSD, Instant, []string{"LiabilitiesCurrent"}},
	{"short_term_debt", Balance, UnitUSD, Instant, []string{"LongTermDebtCurrent", "DebtCurrent", "ShortTermBorrowings", "CommercialPaper"}},
	{"long_term_debt", Balance, UnitUSD, Instant, []string{
		"LongTermDebtNoncurrent",
		"LongTermDebt",
		"LongTermDebtAndCapitalLeaseObligations",
	}},
	{"total_liabilities", Balance, UnitUSD, Instant, []string{"Liabilities"}},
	{"stockholders_equity", Balance, UnitUSD, Instant, []string{
		"StockholdersEquity",
		"StockholdersEquityIncludingPortionAttributableToNoncontrollingInterest",
	}},
	{"retained_earnings", Balance, UnitUSD, Instant, []string{"RetainedEarningsAccumulatedDeficit"}},
	{"liabilities_and_equity", Balance, UnitUSD, Instant, []string{"LiabilitiesAndStockholdersEquity"}},

	// Cash flow statement
	{"operating_cash_flow", CashFlow, UnitUSD, Duration, []string{
		"NetCashProvidedByUsedInOperatingActivities",
		"NetCashProvidedByUsedInOperatingActivitiesContinuingOperations",
	}},
	{"capex", CashFlow, UnitUSD, Duration, []string{"PaymentsToAcquirePropertyPlantAndEquipment", "PaymentsToAcquireProductiveAssets"}},
	{"investing_cash_flow", CashFlow, UnitUSD, Duration, []string{
		"NetCashProvidedByUsedInInvestingActivities",
		"NetCashProvidedByUsedInInvestingActivitiesContinuingOperations",
	}},
	{"financing_cash_flow", CashFlow, UnitUSD, Duration, []string{
		"NetCashProvidedByUsedInFinancingActivities",
		"NetCashProvidedByUsedInFinancingActivitiesContinuingOperations",
	}},
	{"dividends_paid", CashFlow, UnitUSD, Duration, []string{"PaymentsOfDividends", "PaymentsOfDividendsCommonStock"}},
	{"share_repurchases", CashFlow, UnitUSD, Duration, []string{"PaymentsForRepurchaseOfCommonStock"}},
	{"stock_based_compensation", CashFlow, UnitUSD, Duration, []string{"ShareBasedCompensation", "AllocatedShareBasedCompensationExpense"}},
	{"depreciation_amortization", CashFlow, UnitUSD, Duration, []string{
		"DepreciationDepletionAndAmortization",
		"DepreciationAndAmortization",
		"Depreciation",
	}},

	// Share counts
	{"shares_outstanding", Shares, UnitShares, Instant, []string{"CommonStockSharesOutstanding"}},
	{"weighted_shares_basic", Shares, UnitShares, Duration, []string{"WeightedAverageNumberOfSharesOutstandingBasic"}},
	{"weighted_shares_diluted", Shares, UnitShares, Duration, []string{"WeightedAverageNumberOfDilutedSharesOutstanding"}},
}

var byKey = func() map[string]MetricSpec {
	m := make(map[string]MetricSpec, len(table))
	for _, s := range table {
		m[s.Key] = s
	}
	return m
}()

// Table returns a copy of the metric table in its fixed order.
func Table() []MetricSpec {
	out := make([]MetricSpec, len(table))
	copy(out, table)
	return out
}

// Lookup returns the spec for an abstract metric key.
func Lookup(key string) (MetricSpec, bool) {
	s, ok := byKey[key]
	return s, ok
}
