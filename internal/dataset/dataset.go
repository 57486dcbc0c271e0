// Package dataset loads the financial profile dataset and turns records
// into indexable documents.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
)

// Sentinel errors for dataset operations.
var (
	// ErrDatasetNotFound is returned when the source path does not exist.
	ErrDatasetNotFound = errors.New("dataset not found")

	// ErrDatasetFormat is returned when required columns are missing or the
	// file is not parseable CSV.
	ErrDatasetFormat = errors.New("malformed dataset")

	// ErrMalformedRecord is returned when a single record cannot be coerced.
	// Callers skip the record and continue; it never aborts ingestion.
	ErrMalformedRecord = errors.New("malformed record")
)

// requiredColumns are the columns every dataset row must provide.
var requiredColumns = []string{
	"age",
	"income",
	"expenses",
	"savings",
	"debt",
	"employment_years",
	"num_dependents",
	"investment_amount",
	"property_value",
	"credit_score",
	"savings_rate",
	"debt_to_income",
	"expense_ratio",
	"investment_risk_score",
	"affordability_amount",
	"financial_health_score",
	"scenario_category",
}

// Row is one raw dataset row. Index is the positional row index at load
// time and is the basis for document identity, so the source dataset must
// keep a stable row order between ingestion runs.
type Row struct {
	Index  int
	Fields map[string]string
}

// Load reads the dataset CSV at path.
//
// Returns ErrDatasetNotFound if the path is absent and ErrDatasetFormat if
// the header is missing required columns or the file is not valid CSV.
// Field coercion is deferred to Serialize so that a single bad row cannot
// fail the load.
func Load(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrDatasetNotFound, path)
		}
		return nil, fmt.Errorf("opening dataset %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: reading header: %v", ErrDatasetFormat, err)
	}

	colIndex := make(map[string]int, len(header))
	for i, name := range header {
		colIndex[name] = i
	}
	for _, col := range requiredColumns {
		if _, ok := colIndex[col]; !ok {
			return nil, fmt.Errorf("%w: missing column %q", ErrDatasetFormat, col)
		}
	}

	var rows []Row
	for i := 0; ; i++ {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", ErrDatasetFormat, i, err)
		}

		fields := make(map[string]string, len(colIndex))
		for name, idx := range colIndex {
			if idx < len(record) {
				fields[name] = record[idx]
			}
		}
		rows = append(rows, Row{Index: i, Fields: fields})
	}

	return rows, nil
}
