package bo

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"openbis/pkg/domain"
)

// Batch file columns with a fixed meaning. Every other column is a property code.
const (
	ColumnIdentifier = "identifier"
	ColumnParent     = "parent"
	ColumnContainer  = "container"
	ColumnExperiment = "experiment"
)

// SampleTable registers samples in bulk.
type SampleTable struct {
	base
	samples []domain.Sample
}

// NewSampleTable constructs a SampleTable.
func NewSampleTable(tx domain.Transaction, session Session) *SampleTable {
	return &SampleTable{base: base{tx: tx, session: session}}
}

// Register defines and saves the samples in order, so later samples may
// refer to earlier ones as parent or container.
func (t *SampleTable) Register(samples []NewSample) error {
	for _, ns := range samples {
		sbo := NewSampleBO(t.tx, t.session)
		err := sbo.Define(ns)
		if err == nil {
			err = sbo.Save()
		}
		if err != nil {
			if domain.IsUserFailure(err) {
				return domain.UserFailuref("Registration of sample '%s' failed: %s", ns.Identifier, err.Error())
			}
			return fmt.Errorf("register sample %s: %w", ns.Identifier, err)
		}
		s, _ := sbo.TrySample()
		t.samples = append(t.samples, s)
	}
	return nil
}

// Samples returns the registered samples.
func (t *SampleTable) Samples() []domain.Sample {
	out := make([]domain.Sample, len(t.samples))
	copy(out, t.samples)
	return out
}

// ParseSampleBatch reads a tab separated batch registration file. The first
// non-comment line is the header; lines starting with '#' are ignored.
func ParseSampleBatch(r io.Reader, sampleType string) ([]NewSample, error) {
	reader := csv.NewReader(r)
	reader.Comma = '\t'
	reader.Comment = '#'
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, domain.UserFailuref("Batch file is empty.")
	}
	if err != nil {
		return nil, batchError(err)
	}
	columns := make([]string, len(header))
	identifierColumn := -1
	for i, h := range header {
		columns[i] = strings.ToLower(strings.TrimSpace(h))
		if columns[i] == ColumnIdentifier {
			identifierColumn = i
		}
	}
	if identifierColumn < 0 {
		return nil, domain.UserFailuref("Mandatory column '%s' is missing.", ColumnIdentifier)
	}

	var samples []NewSample
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, batchError(err)
		}
		ns := NewSample{SampleType: sampleType}
		for i, value := range record {
			value = strings.TrimSpace(value)
			switch columns[i] {
			case ColumnIdentifier:
				ns.Identifier = value
			case ColumnParent:
				ns.ParentIdentifier = value
			case ColumnContainer:
				ns.ContainerIdentifier = value
			case ColumnExperiment:
				ns.ExperimentIdentifier = value
			default:
				if value != "" {
					ns.Properties = append(ns.Properties, PropertyValue{Code: strings.TrimSpace(header[i]), Value: value})
				}
			}
		}
		if ns.Identifier == "" {
			line, _ := reader.FieldPos(identifierColumn)
			return nil, domain.UserFailuref("Missing sample identifier in line %d.", line)
		}
		samples = append(samples, ns)
	}
	return samples, nil
}

func batchError(err error) error {
	var parseErr *csv.ParseError
	if errors.As(err, &parseErr) {
		if errors.Is(parseErr.Err, csv.ErrFieldCount) {
			return domain.UserFailuref("Line %d has a wrong number of columns.", parseErr.Line)
		}
		return domain.UserFailuref("Line %d of the batch file is malformed: %s", parseErr.Line, parseErr.Err)
	}
	return err
}
