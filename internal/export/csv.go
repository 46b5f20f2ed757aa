package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// ToCSV renders rows with a header taken from the first row's keys. Fields
// holding a comma, quote or newline are quoted with interior quotes doubled.
// No rows renders as "".
func ToCSV(rows []Row) (string, error) {
	var b strings.Builder
	if err := WriteCSV(&b, rows); err != nil {
		return "", err
	}
	return b.String(), nil
}

// WriteCSV streams the CSV rendering of rows to dst
func WriteCSV(dst io.Writer, rows []Row) error {
	if len(rows) == 0 {
		return nil
	}
	w := csv.NewWriter(dst)
	header := rows[0].Keys()
	if err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, r := range rows {
		record := make([]string, len(header))
		for i, k := range header {
			v, _ := r.Get(k)
			record[i] = cellString(v)
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}
	return nil
}
