package sheet

// amountMode determines how amounts are extracted from a row.
type amountMode int

const (
	// amountSingle means one signed column (e.g. "Montante" with value "-10,00").
	amountSingle amountMode = iota
	// amountSplit means separate outflow and inflow columns (e.g. "Débito"/"Crédito").
	amountSplit
)

// Profile describes the column layout of a spreadsheet export.
type Profile struct {
	Name       string
	DateCol    string
	DescCol    string
	AmountMode amountMode
	AmountCol  string // used when AmountMode == amountSingle
	DebitCol   string // used when AmountMode == amountSplit
	CreditCol  string // used when AmountMode == amountSplit
	// BalanceCol is the running balance after each row. Optional: when the
	// header lacks it, no expected closing balance is reported.
	BalanceCol string
}

// requiredCols returns the column names that must be present for this profile to match.
func (p Profile) requiredCols() []string {
	cols := []string{p.DateCol, p.DescCol}

	switch p.AmountMode {
	case amountSingle:
		cols = append(cols, p.AmountCol)
	case amountSplit:
		cols = append(cols, p.DebitCol, p.CreditCol)
	}

	return cols
}

// Tesouraria is the association's own treasury sheet.
var Tesouraria = Profile{
	Name:       "tesouraria",
	DateCol:    "Data",
	DescCol:    "Conceito",
	AmountMode: amountSplit,
	DebitCol:   "Saídas",
	CreditCol:  "Entradas",
	BalanceCol: "Saldo",
}

// CGD holds the bank export layouts. More specific profiles come first.
var CGD = []Profile{
	{
		Name:       "cartão",
		DateCol:    "Data",
		DescCol:    "Descrição",
		AmountMode: amountSplit,
		DebitCol:   "Débito",
		CreditCol:  "Crédito",
	},
	{
		Name:       "extrato",
		DateCol:    "Data mov.",
		DescCol:    "Descrição",
		AmountMode: amountSingle,
		AmountCol:  "Movimento",
		BalanceCol: "Saldo contabilístico após movimento",
	},
	{
		Name:       "conta",
		DateCol:    "Data mov.",
		DescCol:    "Descrição",
		AmountMode: amountSingle,
		AmountCol:  "Montante",
		BalanceCol: "Saldo contabilístico após movimento",
	},
}

// All returns every known profile in detection order.
func All() []Profile {
	return append([]Profile{Tesouraria}, CGD...)
}
