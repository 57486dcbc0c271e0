package dataset

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Document is the derived text+metadata unit created from one record.
// Documents are immutable after creation.
type Document struct {
	// ID is stable across re-ingestion runs of the same source row.
	ID string

	// Text is the narrative rendering of the record. Serialization is
	// deterministic: the same record always yields byte-identical text.
	Text string

	// Metadata maps scalar fields usable for exact-match and range filtering.
	Metadata map[string]interface{}
}

// Record is a fully coerced financial profile.
type Record struct {
	Age                  int
	Income               float64
	Expenses             float64
	Savings              float64
	Debt                 float64
	EmploymentYears      int
	NumDependents        int
	InvestmentAmount     float64
	PropertyValue        float64
	CreditScore          int
	SavingsRate          float64
	DebtToIncome         float64
	ExpenseRatio         float64
	InvestmentRiskScore  float64
	AffordabilityAmount  float64
	FinancialHealthScore float64
	ScenarioCategory     string
}

// currency renders dollar amounts with grouped thousands, matching the
// narrative style of the upstream dataset documentation.
var currency = message.NewPrinter(language.English)

// Serialize converts one raw row into a Document.
//
// Coercion of any required field failing returns ErrMalformedRecord wrapped
// with the row index; callers log and skip the record.
func Serialize(row Row) (Document, error) {
	rec, err := coerce(row)
	if err != nil {
		return Document{}, err
	}

	text := narrative(row.Index, rec)
	return Document{
		ID:       fmt.Sprintf("profile_%d", row.Index),
		Text:     text,
		Metadata: metadata(row.Index, rec, text),
	}, nil
}

func coerce(row Row) (Record, error) {
	c := coercer{fields: row.Fields}

	rec := Record{
		Age:                  c.intField("age"),
		Income:               c.floatField("income"),
		Expenses:             c.floatField("expenses"),
		Savings:              c.floatField("savings"),
		Debt:                 c.floatField("debt"),
		EmploymentYears:      c.intField("employment_years"),
		NumDependents:        c.intField("num_dependents"),
		InvestmentAmount:     c.floatField("investment_amount"),
		PropertyValue:        c.floatField("property_value"),
		CreditScore:          c.intField("credit_score"),
		SavingsRate:          c.floatField("savings_rate"),
		DebtToIncome:         c.floatField("debt_to_income"),
		ExpenseRatio:         c.floatField("expense_ratio"),
		InvestmentRiskScore:  c.floatField("investment_risk_score"),
		AffordabilityAmount:  c.floatField("affordability_amount"),
		FinancialHealthScore: c.floatField("financial_health_score"),
		ScenarioCategory:     c.stringField("scenario_category"),
	}

	if c.err != nil {
		return Record{}, fmt.Errorf("%w: row %d: %v", ErrMalformedRecord, row.Index, c.err)
	}
	return rec, nil
}

// coercer accumulates the first coercion error so field extraction reads flat.
type coercer struct {
	fields map[string]string
	err    error
}

func (c *coercer) raw(name string) (string, bool) {
	v, ok := c.fields[name]
	if !ok || strings.TrimSpace(v) == "" {
		if c.err == nil {
			c.err = fmt.Errorf("field %q missing or empty", name)
		}
		return "", false
	}
	return strings.TrimSpace(v), true
}

func (c *coercer) intField(name string) int {
	v, ok := c.raw(name)
	if !ok {
		return 0
	}
	// Integer columns may arrive as "42.0" from upstream exports.
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		if c.err == nil {
			c.err = fmt.Errorf("field %q: %v", name, err)
		}
		return 0
	}
	return int(f)
}

func (c *coercer) floatField(name string) float64 {
	v, ok := c.raw(name)
	if !ok {
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		if c.err == nil {
			c.err = fmt.Errorf("field %q: %v", name, err)
		}
		return 0
	}
	return f
}

func (c *coercer) stringField(name string) string {
	v, _ := c.raw(name)
	return v
}

func narrative(index int, r Record) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Financial Profile #%d:\n\n", index+1)

	b.WriteString("Demographics:\n")
	fmt.Fprintf(&b, "- Age: %d years old\n", r.Age)
	fmt.Fprintf(&b, "- Employment Years: %d years\n", r.EmploymentYears)
	fmt.Fprintf(&b, "- Number of Dependents: %d\n\n", r.NumDependents)

	b.WriteString("Financial Overview:\n")
	fmt.Fprintf(&b, "- Annual Income: $%s\n", currency.Sprintf("%.2f", r.Income))
	fmt.Fprintf(&b, "- Annual Expenses: $%s\n", currency.Sprintf("%.2f", r.Expenses))
	fmt.Fprintf(&b, "- Current Savings: $%s\n", currency.Sprintf("%.2f", r.Savings))
	fmt.Fprintf(&b, "- Total Debt: $%s\n", currency.Sprintf("%.2f", r.Debt))
	fmt.Fprintf(&b, "- Investment Amount: $%s\n", currency.Sprintf("%.2f", r.InvestmentAmount))
	fmt.Fprintf(&b, "- Property Value: $%s\n\n", currency.Sprintf("%.2f", r.PropertyValue))

	b.WriteString("Financial Metrics:\n")
	fmt.Fprintf(&b, "- Credit Score: %d\n", r.CreditScore)
	fmt.Fprintf(&b, "- Savings Rate: %.1f%%\n", r.SavingsRate*100)
	fmt.Fprintf(&b, "- Debt-to-Income Ratio: %.2f\n", r.DebtToIncome)
	fmt.Fprintf(&b, "- Expense Ratio: %.1f%%\n\n", r.ExpenseRatio*100)

	b.WriteString("AI Predictions:\n")
	fmt.Fprintf(&b, "- Investment Risk Score: %.1f/100\n", r.InvestmentRiskScore)
	fmt.Fprintf(&b, "- Affordability Amount: $%s\n", currency.Sprintf("%.2f", r.AffordabilityAmount))
	fmt.Fprintf(&b, "- Financial Health Score: %.1f/100\n", r.FinancialHealthScore)
	fmt.Fprintf(&b, "- Recommended Scenario: %s\n\n", r.ScenarioCategory)

	b.WriteString("Profile Summary:\n")
	fmt.Fprintf(&b,
		"This is a %d-year-old individual with %d years of employment and %d dependent(s). "+
			"They earn $%s annually, with a savings rate of %.1f%% and a financial health score "+
			"of %.1f/100. Their recommended investment scenario is %s.\n",
		r.Age, r.EmploymentYears, r.NumDependents,
		currency.Sprintf("%.2f", r.Income), r.SavingsRate*100,
		r.FinancialHealthScore, r.ScenarioCategory,
	)

	return b.String()
}

func metadata(index int, r Record, text string) map[string]interface{} {
	return map[string]interface{}{
		"record_id":              index,
		"age":                    r.Age,
		"income":                 r.Income,
		"credit_score":           r.CreditScore,
		"financial_health_score": r.FinancialHealthScore,
		"scenario_category":      r.ScenarioCategory,
		"debt_to_income":         r.DebtToIncome,
		"savings_rate":           r.SavingsRate,
		"employment_years":       r.EmploymentYears,
		"num_dependents":         r.NumDependents,
		"fingerprint":            fingerprint(text),
	}
}

// fingerprint is a short content hash of the narrative text. It lets
// operators detect stale entries when the source dataset was reordered
// between incremental ingestion runs.
func fingerprint(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:8])
}
