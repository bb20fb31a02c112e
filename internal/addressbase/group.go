package addressbase

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
)

// GroupReader turns the flat row stream of one change file into a sequence
// of valid property groups. It is a single sequential pass: rows are
// clustered into maximal runs of consecutive rows sharing the UPRN column,
// assuming the file is already ordered by UPRN. A UPRN that reappears in a
// later, non-adjacent run forms a separate group; the reader does not
// re-sort.
//
// A GroupReader is one-shot. After Next returns io.EOF it cannot be reused;
// re-running an import means reopening the input.
type GroupReader struct {
	reader *csv.Reader
	logger *slog.Logger

	header        *Header
	entryDatetime string

	pending *rawRow // first row of the next run, read ahead
	line    int
	skipped int
	done    bool
}

type rawRow struct {
	fields []string
	line   int
}

// NewGroupReader wraps an open change-file stream.
func NewGroupReader(r io.Reader, logger *slog.Logger) *GroupReader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1 // rows carry different arities per record type
	return &GroupReader{reader: cr, logger: logger}
}

// Next returns the next valid property group, io.EOF at the end of the
// stream, or a *FormatError on malformed input. Groups with the wrong
// cardinality of address or coordinate records are skipped with a logged
// warning, never an error.
func (g *GroupReader) Next() (*Group, error) {
	if g.done {
		return nil, io.EOF
	}
	for {
		run, err := g.nextRun()
		if errors.Is(err, io.EOF) {
			g.done = true
			if g.header == nil {
				return nil, &FormatError{Msg: "input contains no header record"}
			}
			return nil, io.EOF
		}
		if err != nil {
			g.done = true
			return nil, err
		}

		if g.header == nil {
			if len(run) != 1 || typeCode(run[0].fields) != TypeHeader {
				g.done = true
				return nil, &FormatError{Line: run[0].line, Msg: "input must begin with a single header record"}
			}
			header, err := DecodeHeader(run[0].fields, run[0].line)
			if err != nil {
				g.done = true
				return nil, err
			}
			g.header = &header
			g.entryDatetime = header.EntryDatetime()
			continue
		}

		group, err := g.classify(run)
		if err != nil {
			g.done = true
			return nil, err
		}
		if group == nil {
			continue // skipped, keep going
		}
		return group, nil
	}
}

// EntryDatetime returns the run-wide entry datetime extracted from the
// header. Empty until the header has been consumed.
func (g *GroupReader) EntryDatetime() string {
	return g.entryDatetime
}

// Skipped reports how many groups failed classification and were dropped.
func (g *GroupReader) Skipped() int {
	return g.skipped
}

// nextRun reads the maximal run of consecutive rows sharing the UPRN column.
func (g *GroupReader) nextRun() ([]rawRow, error) {
	var run []rawRow
	if g.pending != nil {
		run = append(run, *g.pending)
		g.pending = nil
	}
	for {
		fields, err := g.reader.Read()
		if errors.Is(err, io.EOF) {
			if len(run) == 0 {
				return nil, io.EOF
			}
			return run, nil
		}
		if err != nil {
			return nil, &FormatError{Line: g.line + 1, Msg: fmt.Sprintf("malformed CSV: %v", err)}
		}
		g.line++
		if len(fields) <= colUPRN {
			return nil, &FormatError{Line: g.line,
				Msg: fmt.Sprintf("row needs at least %d fields to carry a grouping key, got %d", colUPRN+1, len(fields))}
		}
		row := rawRow{fields: fields, line: g.line}
		if len(run) > 0 && fields[colUPRN] != run[0].fields[colUPRN] {
			g.pending = &row
			return run, nil
		}
		run = append(run, row)
	}
}

// classify decodes the recognized rows of one run and enforces the group
// contract: exactly one address record, at most one coordinate record.
// Invalid groups return (nil, nil) and are counted, not fatal.
func (g *GroupReader) classify(run []rawRow) (*Group, error) {
	var (
		addresses   []DPA
		coordinates []BLPU
	)
	for _, row := range run {
		switch typeCode(row.fields) {
		case TypeBLPU:
			blpu, err := DecodeBLPU(row.fields, row.line)
			if err != nil {
				return nil, err
			}
			coordinates = append(coordinates, blpu)
		case TypeDPA:
			dpa, err := DecodeDPA(row.fields, row.line)
			if err != nil {
				return nil, err
			}
			addresses = append(addresses, dpa)
		default:
			// Record types outside the recognized set are dropped before
			// classification.
		}
	}

	if len(addresses) != 1 || len(coordinates) > 1 {
		g.skipped++
		g.logger.Warn("skipping property group with invalid record cardinality",
			"uprn", run[0].fields[colUPRN],
			"address_records", len(addresses),
			"coordinate_records", len(coordinates),
		)
		return nil, nil
	}

	group := &Group{UPRN: addresses[0].UPRN, Address: addresses[0]}
	if len(coordinates) == 1 {
		group.Coordinate = &coordinates[0]
	}
	return group, nil
}

func typeCode(fields []string) int {
	code, err := strconv.Atoi(fields[colRecordIdentifier])
	if err != nil {
		return -1 // unparseable codes are treated as unrecognized
	}
	return code
}
