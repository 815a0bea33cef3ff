package parser

import (
	"fmt"

	"github.com/aluiziolira/go-scrape-catalog/models"
)

// Column holds the values extracted for one field on one page. Skipped marks
// a field that could not be extracted; it renders as empty strings so the
// remaining columns keep their positions.
type Column struct {
	Values  []string
	Skipped bool
}

// ZipColumns combines columns into records by position. Only rows present in
// every extracted column are returned; mismatched counts the rows that some
// columns had and others did not.
func ZipColumns(columns []Column) (records []models.ProductRecord, mismatched int) {
	shortest, longest := -1, 0
	for _, col := range columns {
		if col.Skipped {
			continue
		}
		n := len(col.Values)
		if shortest < 0 || n < shortest {
			shortest = n
		}
		if n > longest {
			longest = n
		}
	}
	if shortest <= 0 {
		return nil, longest
	}

	records = make([]models.ProductRecord, 0, shortest)
	for row := 0; row < shortest; row++ {
		record := make(models.ProductRecord, len(columns))
		for i, col := range columns {
			if !col.Skipped {
				record[i] = col.Values[row]
			}
		}
		records = append(records, record)
	}
	return records, longest - shortest
}

// ValidateRecord ensures the record has exactly one value per field.
func ValidateRecord(record models.ProductRecord, width int) error {
	if record == nil {
		return fmt.Errorf("record is nil")
	}
	if len(record) != width {
		return fmt.Errorf("record has %d fields, want %d", len(record), width)
	}
	return nil
}
