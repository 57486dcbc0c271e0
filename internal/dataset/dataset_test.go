package dataset_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fundnexus/finrag/internal/dataset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testHeader = "age,income,expenses,savings,debt,employment_years,num_dependents," +
	"investment_amount,property_value,credit_score,savings_rate,debt_to_income," +
	"expense_ratio,investment_risk_score,affordability_amount,financial_health_score," +
	"scenario_category"

const testRow = "34,85000,42000,120000,15000,8,2,50000,350000,720,0.25,0.18,0.49,45.5,420000,78.2,Balanced Growth"

func writeCSV(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dataset.csv")
	content := strings.Join(lines, "\n") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func testFields(t *testing.T) dataset.Row {
	t.Helper()
	rows, err := dataset.Load(writeCSV(t, testHeader, testRow))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	return rows[0]
}

func TestLoad_NotFound(t *testing.T) {
	_, err := dataset.Load(filepath.Join(t.TempDir(), "missing.csv"))
	assert.ErrorIs(t, err, dataset.ErrDatasetNotFound)
}

func TestLoad_MissingColumn(t *testing.T) {
	header := strings.Replace(testHeader, "credit_score,", "", 1)
	row := strings.Replace(testRow, "720,", "", 1)

	_, err := dataset.Load(writeCSV(t, header, row))
	require.ErrorIs(t, err, dataset.ErrDatasetFormat)
	assert.Contains(t, err.Error(), "credit_score")
}

func TestLoad_RowIndexes(t *testing.T) {
	rows, err := dataset.Load(writeCSV(t, testHeader, testRow, testRow, testRow))
	require.NoError(t, err)
	require.Len(t, rows, 3)
	for i, row := range rows {
		assert.Equal(t, i, row.Index)
		assert.Equal(t, "34", row.Fields["age"])
	}
}

func TestSerialize_Deterministic(t *testing.T) {
	row := testFields(t)

	first, err := dataset.Serialize(row)
	require.NoError(t, err)
	second, err := dataset.Serialize(row)
	require.NoError(t, err)

	assert.Equal(t, first.Text, second.Text)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.Metadata["fingerprint"], second.Metadata["fingerprint"])
}

func TestSerialize_Narrative(t *testing.T) {
	doc, err := dataset.Serialize(testFields(t))
	require.NoError(t, err)

	assert.Equal(t, "profile_0", doc.ID)
	assert.Contains(t, doc.Text, "Financial Profile #1:")
	assert.Contains(t, doc.Text, "Demographics:")
	assert.Contains(t, doc.Text, "Financial Overview:")
	assert.Contains(t, doc.Text, "Financial Metrics:")
	assert.Contains(t, doc.Text, "AI Predictions:")
	assert.Contains(t, doc.Text, "Profile Summary:")

	// Currency is rendered with grouped thousands.
	assert.Contains(t, doc.Text, "- Annual Income: $85,000.00")
	assert.Contains(t, doc.Text, "- Property Value: $350,000.00")
	// Rates render as percentages.
	assert.Contains(t, doc.Text, "- Savings Rate: 25.0%")
	assert.Contains(t, doc.Text, "- Recommended Scenario: Balanced Growth")
}

func TestSerialize_Metadata(t *testing.T) {
	doc, err := dataset.Serialize(testFields(t))
	require.NoError(t, err)

	assert.Equal(t, 0, doc.Metadata["record_id"])
	assert.Equal(t, 34, doc.Metadata["age"])
	assert.Equal(t, 85000.0, doc.Metadata["income"])
	assert.Equal(t, 720, doc.Metadata["credit_score"])
	assert.Equal(t, 78.2, doc.Metadata["financial_health_score"])
	assert.Equal(t, "Balanced Growth", doc.Metadata["scenario_category"])
	assert.Equal(t, 0.18, doc.Metadata["debt_to_income"])
	assert.Equal(t, 0.25, doc.Metadata["savings_rate"])
	assert.Equal(t, 8, doc.Metadata["employment_years"])
	assert.Equal(t, 2, doc.Metadata["num_dependents"])

	fingerprint, ok := doc.Metadata["fingerprint"].(string)
	require.True(t, ok)
	assert.Len(t, fingerprint, 16)
}

func TestSerialize_IntegerExportedAsFloat(t *testing.T) {
	row := testFields(t)
	// Upstream exports sometimes render integer columns as "34.0".
	row.Fields["age"] = "34.0"

	doc, err := dataset.Serialize(row)
	require.NoError(t, err)
	assert.Equal(t, 34, doc.Metadata["age"])
}

func TestSerialize_Malformed(t *testing.T) {
	tests := []struct {
		name   string
		field  string
		value  string
	}{
		{name: "empty field", field: "income", value: ""},
		{name: "whitespace field", field: "age", value: "   "},
		{name: "non-numeric", field: "credit_score", value: "excellent"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := testFields(t)
			row.Fields[tt.field] = tt.value

			_, err := dataset.Serialize(row)
			require.ErrorIs(t, err, dataset.ErrMalformedRecord)
			assert.Contains(t, err.Error(), "row 0")
		})
	}
}
