package summary

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/spf13/cast"

	"github.com/insightloop/glean/pkg/models"
)

const (
	maxSampleRows = 5
	maxTopValues  = 10
	dateProbeRows = 5
)

var (
	numericPattern = regexp.MustCompile(`^-?\d+(\.\d+)?$`)
	isoDatePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)
	usDatePattern  = regexp.MustCompile(`^\d{2}/\d{2}/\d{4}$`)
)

// BuildStructuralSummary renders the per-dataset, per-column profile sent to
// the LLM for the analysis phase. Raw rows never appear here; sensitive
// columns are listed but carry no values.
func BuildStructuralSummary(results []models.QueryResult) string {
	var b strings.Builder

	for i, r := range results {
		fmt.Fprintf(&b, "=== Dataset %d ===\n", i+1)
		if r.Query != "" {
			fmt.Fprintf(&b, "Query: %s\n", r.Query)
		}
		if r.Explanation != "" {
			fmt.Fprintf(&b, "Purpose: %s\n", r.Explanation)
		}
		fmt.Fprintf(&b, "Columns: %s\n", strings.Join(r.Columns, ", "))
		fmt.Fprintf(&b, "Row count: %d\n", r.RowCount)

		for _, col := range r.Columns {
			writeColumnProfile(&b, col, r.Rows)
		}

		writeSampleRows(&b, r.Columns, r.Rows)
		b.WriteString("\n")
	}

	return b.String()
}

// BuildEmbeddableDatasets serialises the full results verbatim for the
// server-side dashboard renderer. This payload is never returned to the AI.
func BuildEmbeddableDatasets(results []models.QueryResult) (string, error) {
	type dataset struct {
		Query    string           `json:"query"`
		Columns  []string         `json:"columns"`
		RowCount int              `json:"rowCount"`
		Rows     []map[string]any `json:"rows"`
	}

	datasets := make([]dataset, 0, len(results))
	for _, r := range results {
		datasets = append(datasets, dataset{
			Query:    r.Query,
			Columns:  r.Columns,
			RowCount: r.RowCount,
			Rows:     r.Rows,
		})
	}

	data, err := json.Marshal(datasets)
	if err != nil {
		return "", fmt.Errorf("failed to marshal embeddable datasets: %w", err)
	}
	return string(data), nil
}

func writeColumnProfile(b *strings.Builder, col string, rows []map[string]any) {
	if IsSensitiveColumn(col) {
		fmt.Fprintf(b, "- %s: REDACTED (sensitive column, values withheld)\n", col)
		return
	}

	var (
		nullCount int
		values    []string
		nums      []float64
	)
	distinct := make(map[string]int)

	for _, row := range rows {
		v, ok := row[col]
		if !ok || v == nil {
			nullCount++
			continue
		}
		s := cast.ToString(v)
		values = append(values, s)
		distinct[s]++
		if numericPattern.MatchString(s) {
			nums = append(nums, cast.ToFloat64(s))
		}
	}

	colType := inferType(values, nums)

	fmt.Fprintf(b, "- %s: type=%s, nulls=%d, distinct=%d", col, colType, nullCount, len(distinct))

	if colType == "numeric" && len(nums) > 0 {
		min, max, sum := nums[0], nums[0], 0.0
		for _, n := range nums {
			if n < min {
				min = n
			}
			if n > max {
				max = n
			}
			sum += n
		}
		fmt.Fprintf(b, ", min=%.2f, max=%.2f, avg=%.2f, sum=%.2f",
			min, max, sum/float64(len(nums)), sum)
	}
	b.WriteString("\n")

	if top := topValues(distinct); len(top) > 0 {
		fmt.Fprintf(b, "  top values: %s\n", strings.Join(top, ", "))
	}
}

func inferType(values []string, nums []float64) string {
	if len(values) == 0 {
		return "string"
	}
	if len(nums) == len(values) {
		return "numeric"
	}
	probe := values
	if len(probe) > dateProbeRows {
		probe = probe[:dateProbeRows]
	}
	allDates := true
	for _, v := range probe {
		if !isoDatePattern.MatchString(v) && !usDatePattern.MatchString(v) {
			allDates = false
			break
		}
	}
	if allDates {
		return "date"
	}
	return "string"
}

func topValues(distinct map[string]int) []string {
	type freq struct {
		value string
		count int
	}
	freqs := make([]freq, 0, len(distinct))
	for v, c := range distinct {
		freqs = append(freqs, freq{v, c})
	}
	sort.Slice(freqs, func(i, j int) bool {
		if freqs[i].count != freqs[j].count {
			return freqs[i].count > freqs[j].count
		}
		return freqs[i].value < freqs[j].value
	})
	if len(freqs) > maxTopValues {
		freqs = freqs[:maxTopValues]
	}
	out := make([]string, len(freqs))
	for i, f := range freqs {
		out[i] = fmt.Sprintf("%s (%d)", f.value, f.count)
	}
	return out
}

func writeSampleRows(b *strings.Builder, columns []string, rows []map[string]any) {
	if len(rows) == 0 {
		return
	}
	limit := len(rows)
	if limit > maxSampleRows {
		limit = maxSampleRows
	}

	fmt.Fprintf(b, "Sample rows (%d):\n", limit)
	b.WriteString("  " + strings.Join(columns, " | ") + "\n")
	for _, row := range rows[:limit] {
		cells := make([]string, len(columns))
		for i, col := range columns {
			if IsSensitiveColumn(col) {
				cells[i] = Redacted
				continue
			}
			cells[i] = cast.ToString(row[col])
		}
		b.WriteString("  " + strings.Join(cells, " | ") + "\n")
	}
}
