package executor

import (
	"fmt"
	"sort"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/wbrown/janus-provenance/datalog"
	"github.com/wbrown/janus-provenance/datalog/program"
	"github.com/wbrown/janus-provenance/datalog/provenance"
	"github.com/wbrown/janus-provenance/datalog/storage"
)

// TableFormatter provides utilities for formatting relations as tables
type TableFormatter struct {
	// MaxWidth is the maximum width for a column
	MaxWidth int
	// TruncateString is the string to append when truncating
	TruncateString string
}

// NewTableFormatter creates a new table formatter with default settings
func NewTableFormatter() *TableFormatter {
	return &TableFormatter{
		MaxWidth:       50,
		TruncateString: "...",
	}
}

// FormatCollection formats the facts of a relation as a markdown table
// with the tag in the first column. Rows are sorted by tuple.
func FormatCollection[T any](tf *TableFormatter, rel *program.Relation, facts *storage.Collection[T], prov provenance.Provenance[T]) string {
	if facts == nil || facts.Len() == 0 {
		return "_Empty relation_"
	}

	sorted := make([]storage.Fact[T], facts.Len())
	copy(sorted, facts.Facts())
	sort.SliceStable(sorted, func(i, j int) bool {
		return datalog.CompareTuples(sorted[i].Tuple, sorted[j].Tuple) < 0
	})

	arity := len(sorted[0].Tuple)
	if rel != nil {
		arity = rel.Arity()
	}
	columns := make([]string, 0, arity+1)
	columns = append(columns, "tag")
	for i := 0; i < arity; i++ {
		if rel != nil {
			columns = append(columns, fmt.Sprintf("%d:%s", i, rel.Types[i]))
		} else {
			columns = append(columns, fmt.Sprintf("%d", i))
		}
	}

	rows := make([][]string, len(sorted))
	for i, f := range sorted {
		row := make([]string, 0, len(f.Tuple)+1)
		row = append(row, prov.Format(f.Tag))
		for _, v := range f.Tuple {
			row = append(row, tf.formatValue(v))
		}
		rows[i] = row
	}
	return tf.formatTable(columns, rows)
}

// formatTable formats columns and rows as a markdown table
func (tf *TableFormatter) formatTable(columns []string, rows [][]string) string {
	if len(rows) == 0 {
		return fmt.Sprintf("_Columns: %v_\n\n_No rows_", columns)
	}

	tableString := &strings.Builder{}

	// Create alignment array with all columns using AlignNone for simple separators
	alignment := make([]tw.Align, len(columns))
	for i := range alignment {
		alignment[i] = tw.AlignNone
	}

	table := tablewriter.NewTable(tableString,
		tablewriter.WithRenderer(renderer.NewMarkdown()),
		tablewriter.WithAlignment(alignment),
		tablewriter.WithHeaderAutoFormat(tw.Off),
	)

	table.Header(columns)
	for _, row := range rows {
		table.Append(row)
	}

	// Render the table
	table.Render()

	// Add row count
	tableString.WriteString(fmt.Sprintf("\n_%d rows_\n", len(rows)))

	return tableString.String()
}

// formatValue converts a value to a string representation
func (tf *TableFormatter) formatValue(val datalog.Value) string {
	var s string
	switch v := val.(type) {
	case string:
		// Unquoted for readability
		s = v
	default:
		s = datalog.FormatValue(v)
	}
	if tf.MaxWidth > 0 && len(s) > tf.MaxWidth {
		cut := tf.MaxWidth - len(tf.TruncateString)
		if cut < 0 {
			cut = 0
		}
		s = s[:cut] + tf.TruncateString
	}
	return s
}
