package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/ikape/platform/pkg/features"
)

const DefaultMinRows = 200

var ErrEmpty = errors.New("dataset is empty")

type Options struct {
	MinRows int
}

// Prepared is a cleaned dataset in canonical form. Targets follow the
// schema's target order and use NaN for missing values.
type Prepared struct {
	Schema  *features.Schema
	Records []*features.Record
	Targets [][]float64
}

func (p *Prepared) Len() int { return len(p.Records) }

// Target returns one target column.
func (p *Prepared) Target(key string) ([]float64, error) {
	idx := -1
	for i, k := range p.Schema.TargetKeys() {
		if k == key {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("schema %s has no target %s", p.Schema.Name, key)
	}
	out := make([]float64, len(p.Targets))
	for i, row := range p.Targets {
		out[i] = row[idx]
	}
	return out, nil
}

var gradeTargets = []string{"fine_grade_pct", "premium_grade_pct", "commercial_grade_pct"}

// Prepare reads a CSV export and turns it into canonical records the way the
// training pipeline expects: column names normalized and resolved through
// the schema aliases, identifiers hashed, duplicates dropped, values coerced,
// empty columns defaulted and target grades rescaled to 100.
func Prepare(r io.Reader, schema *features.Schema, opts Options) (*Prepared, QualityReport, error) {
	var report QualityReport

	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, report, fmt.Errorf("read dataset: %w", err)
	}
	if len(rows) < 2 {
		return nil, report, ErrEmpty
	}

	header := make([]string, len(rows[0]))
	position := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		header[i] = features.NormalizeColumnName(name)
		if _, seen := position[header[i]]; !seen {
			position[header[i]] = i
		}
	}

	featureCols, err := features.ResolveColumns(header, schema.Fields, "feature", true)
	if err != nil {
		return nil, report, missingColumns(err)
	}
	targetCols, err := features.ResolveColumns(header, schema.Targets, "target", true)
	if err != nil {
		return nil, report, missingColumns(err)
	}

	width := schema.Len() + len(schema.Targets)
	cells := make([][]string, 0, len(rows)-1)
	seen := make(map[string]struct{}, len(rows)-1)
	initial := len(rows) - 1
	for _, row := range rows[1:] {
		canonical := make([]string, width)
		for i, f := range schema.Fields {
			cell := strings.TrimSpace(row[position[featureCols[f.Key]]])
			if f.Kind == features.KindIdentifier {
				cell = strconv.FormatFloat(features.HashIdentifier(cell), 'f', -1, 64)
			}
			canonical[i] = cell
		}
		for i, f := range schema.Targets {
			canonical[schema.Len()+i] = strings.TrimSpace(row[position[targetCols[f.Key]]])
		}
		key := strings.Join(canonical, "\x1f")
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		cells = append(cells, canonical)
	}
	report.InitialRows = initial
	report.DroppedDuplicates = initial - len(cells)
	report.RowsAfterDedup = len(cells)

	prep := &Prepared{Schema: schema}
	report.CategoricalDropped = make(map[string]int)
	for _, f := range schema.Fields {
		if f.Kind == features.KindCategorical {
			report.CategoricalDropped[f.Key] = 0
		}
	}
	for _, row := range cells {
		rec := &features.Record{Schema: schema, Encoding: features.EncodingFrame, Values: make([]features.Value, schema.Len())}
		for i, f := range schema.Fields {
			rec.Values[i] = coerceCell(f, row[i], report.CategoricalDropped)
		}
		targets := make([]float64, len(schema.Targets))
		for i := range schema.Targets {
			targets[i] = features.FrameNumeric.Coerce(row[schema.Len()+i])
		}
		prep.Records = append(prep.Records, rec)
		prep.Targets = append(prep.Targets, targets)
	}

	report.MissingRateBeforeFill = missingRates(prep)
	fillEmptyColumns(prep, &report)
	dropUnlabelled(prep)
	clipTargets(prep)
	normalizeGrades(prep)

	minRows := opts.MinRows
	if minRows <= 0 {
		minRows = DefaultMinRows
	}
	if prep.Len() < minRows {
		return nil, report, fmt.Errorf("not enough rows after cleaning: got %d, required at least %d", prep.Len(), minRows)
	}

	report.RowsAfterCleaning = prep.Len()
	report.MissingRate = missingRates(prep)
	report.FeatureQuality = featureQuality(prep)
	return prep, report, nil
}

func missingColumns(err error) error {
	var missing *features.MissingColumnsError
	if errors.As(err, &missing) {
		return fmt.Errorf("dataset is missing required %s columns: %s", missing.Kind, strings.Join(missing.Missing, ", "))
	}
	return err
}

// coerceCell applies the training-time conversion for one cell. Categorical
// values outside the domain become unknown and are counted in dropped.
func coerceCell(f features.Field, cell string, dropped map[string]int) features.Value {
	switch f.Kind {
	case features.KindIdentifier:
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return features.Number(math.NaN())
		}
		return features.Number(v)
	case features.KindCategorical:
		v := features.CoerceCategorical(f.Domain, cell)
		if v == "" && cell != "" {
			dropped[f.Key]++
		}
		return features.Text(v)
	case features.KindBoolean:
		return features.Flag(features.CoercePresence(cell))
	default:
		return features.Number(features.FrameNumeric.Coerce(cell))
	}
}

func fillEmptyColumns(p *Prepared, report *QualityReport) {
	report.NumericFilled = []string{}
	report.CategoricalFilled = map[string]string{}
	for i, f := range p.Schema.Fields {
		if f.Kind != features.KindNumeric && f.Kind != features.KindCategorical {
			continue
		}
		empty := true
		for _, rec := range p.Records {
			if !rec.Values[i].Missing() {
				empty = false
				break
			}
		}
		if !empty {
			continue
		}
		fill := features.Number(0)
		if f.Kind == features.KindCategorical {
			def := f.Domain.ColumnDefault
			if def == "" {
				def = "unknown"
			}
			fill = features.Text(def)
			report.CategoricalFilled[f.Key] = def
		} else {
			report.NumericFilled = append(report.NumericFilled, f.Key)
		}
		for _, rec := range p.Records {
			rec.Values[i] = fill
		}
	}
}

// dropUnlabelled removes rows without any target value.
func dropUnlabelled(p *Prepared) {
	records := p.Records[:0]
	targets := p.Targets[:0]
	for i, row := range p.Targets {
		for _, v := range row {
			if !math.IsNaN(v) {
				records = append(records, p.Records[i])
				targets = append(targets, row)
				break
			}
		}
	}
	p.Records = records
	p.Targets = targets
}

func clipTargets(p *Prepared) {
	for _, row := range p.Targets {
		for i, v := range row {
			if v < 0 {
				row[i] = 0
			}
		}
	}
}

// normalizeGrades rescales the grade targets of every row with positive
// mass so that the present values sum to 100.
func normalizeGrades(p *Prepared) {
	keys := p.Schema.TargetKeys()
	var idx []int
	for _, g := range gradeTargets {
		for i, k := range keys {
			if k == g {
				idx = append(idx, i)
			}
		}
	}
	for _, row := range p.Targets {
		var sum float64
		for _, i := range idx {
			if !math.IsNaN(row[i]) {
				sum += row[i]
			}
		}
		if sum <= 0 {
			continue
		}
		for _, i := range idx {
			row[i] = row[i] / sum * 100
		}
	}
}

// WriteCSV writes the canonical dataset: feature keys then target keys,
// missing values as empty cells.
func WriteCSV(w io.Writer, p *Prepared) error {
	cw := csv.NewWriter(w)
	header := append(p.Schema.Keys(), p.Schema.TargetKeys()...)
	if err := cw.Write(header); err != nil {
		return err
	}
	line := make([]string, len(header))
	for i, rec := range p.Records {
		for j, v := range rec.Values {
			line[j] = cellString(v)
		}
		for j, t := range p.Targets[i] {
			line[len(rec.Values)+j] = cellString(features.Number(t))
		}
		if err := cw.Write(line); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func cellString(v features.Value) string {
	if v.Missing() {
		return ""
	}
	return v.String()
}
