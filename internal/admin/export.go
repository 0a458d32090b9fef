package admin

import (
	"encoding/csv"
	"fmt"
	"io"
	"slices"
)

// WriteJSON writes records as an indented JSON array.
func WriteJSON(w io.Writer, records []Record) error {
	if records == nil {
		records = []Record{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}

// WriteCSV writes records as CSV. The header is the first record's keys in
// sorted order; later records are projected onto it. Nested values are
// written as JSON.
func WriteCSV(w io.Writer, records []Record) error {
	if len(records) == 0 {
		_, err := io.WriteString(w, "No data found\n")
		return err
	}
	header := make([]string, 0, len(records[0]))
	for k := range records[0] {
		header = append(header, k)
	}
	slices.Sort(header)

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	row := make([]string, len(header))
	for _, rec := range records {
		for i, h := range header {
			cell, err := csvCell(rec[h])
			if err != nil {
				return err
			}
			row[i] = cell
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func csvCell(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case map[string]any, []any:
		b, err := json.Marshal(t)
		if err != nil {
			return "", err
		}
		return string(b), nil
	default:
		return fmt.Sprint(t), nil
	}
}
