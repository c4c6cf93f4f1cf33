package services

import "app-reviews-pipeline/models"

// Merge concatenates normalized rows into one working table, batch by batch
// in the order given, then row order within each batch. Every row ends up
// carrying every column, so later stages can rely on a stable shape.
func Merge(columns []string, batches ...[]models.Row) *models.Table {
	total := 0
	for _, b := range batches {
		total += len(b)
	}

	t := &models.Table{Columns: columns, Rows: make([]models.Row, 0, total)}
	for _, b := range batches {
		for _, r := range b {
			if r.Values == nil {
				r.Values = make(map[string]any, len(columns))
			}
			for _, col := range columns {
				if _, ok := r.Values[col]; !ok {
					r.Values[col] = nil
				}
			}
			t.Rows = append(t.Rows, r)
		}
	}
	return t
}
