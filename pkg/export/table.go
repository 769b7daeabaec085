package export

// Table defines tabular export content with ordered columns.
type Table struct {
	Columns []string
	Rows    [][]string
}
