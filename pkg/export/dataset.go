package export

import "fmt"

// Dataset is a titled table ready to be rendered.
type Dataset struct {
	Title string
	// Notes are printed under the title by renderers that support it.
	Notes   []string
	Headers []string
	// Weights sizes columns relative to each other. Empty means equal widths.
	Weights []float64
	Rows    []map[string]string
}

func (d Dataset) validate(format string) error {
	if len(d.Headers) == 0 {
		return fmt.Errorf("%s requires at least one header", format)
	}
	if len(d.Weights) > 0 && len(d.Weights) != len(d.Headers) {
		return fmt.Errorf("%s: %d weights for %d headers", format, len(d.Weights), len(d.Headers))
	}
	return nil
}

func (d Dataset) record(row map[string]string) []string {
	record := make([]string, len(d.Headers))
	for i, header := range d.Headers {
		record[i] = row[header]
	}
	return record
}

// columnWidths splits total across the columns according to Weights.
func (d Dataset) columnWidths(total float64) []float64 {
	widths := make([]float64, len(d.Headers))
	if len(d.Weights) == 0 {
		for i := range widths {
			widths[i] = total / float64(len(widths))
		}
		return widths
	}
	var sum float64
	for _, w := range d.Weights {
		sum += w
	}
	for i, w := range d.Weights {
		widths[i] = total * w / sum
	}
	return widths
}
