// Package importer reads cutting requests from YAML and Excel files.
package importer

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"

	"github.com/eugenenazirov/tube-cutter/internal/cutting"
)

// ErrNoDetails is returned when a request file contains no detail rows.
var ErrNoDetails = errors.New("request contains no details")

// Request is a cutting request read from a file. Capacity is zero when the
// file does not set one.
type Request struct {
	Capacity float64          `yaml:"capacity"`
	Details  []cutting.Detail `yaml:"details"`
}

// ReadYAML decodes a request of the form
//
//	capacity: 5500
//	details:
//	  - {name: A, length: 300, amount: 100}
func ReadYAML(r io.Reader) (Request, error) {
	var req Request
	if err := yaml.NewDecoder(r).Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return Request{}, ErrNoDetails
		}
		return Request{}, fmt.Errorf("parse YAML: %w", err)
	}
	if len(req.Details) == 0 {
		return Request{}, ErrNoDetails
	}

	var errs []error
	if req.Capacity != 0 && !cutting.ValidLength(req.Capacity) {
		errs = append(errs, fmt.Errorf("capacity must be a finite positive number, got %v", req.Capacity))
	}
	for i, d := range req.Details {
		if err := validate(d); err != nil {
			errs = append(errs, fmt.Errorf("detail %d: %w", i+1, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return Request{}, err
	}
	return req, nil
}

// columnMapping holds the column index of each field, -1 when absent.
type columnMapping struct {
	Name     int
	Length   int
	Quantity int
}

// ReadXLSX reads details from the first sheet of an Excel workbook. The first
// row must be a header naming the name, length and quantity columns.
func ReadXLSX(r io.Reader) (Request, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return Request{}, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return Request{}, ErrNoDetails
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return Request{}, fmt.Errorf("read rows: %w", err)
	}
	if len(rows) == 0 {
		return Request{}, ErrNoDetails
	}

	mapping := detectColumns(rows[0])
	var missing []string
	if mapping.Name < 0 {
		missing = append(missing, "name")
	}
	if mapping.Length < 0 {
		missing = append(missing, "length")
	}
	if mapping.Quantity < 0 {
		missing = append(missing, "quantity")
	}
	if len(missing) > 0 {
		return Request{}, fmt.Errorf("required columns not found in header: %s", strings.Join(missing, ", "))
	}

	var (
		req  Request
		errs []error
	)
	for i, row := range rows[1:] {
		if isEmptyRow(row) {
			continue
		}
		d, err := parseRow(row, mapping)
		if err == nil {
			err = validate(d)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("row %d: %w", i+2, err))
			continue
		}
		req.Details = append(req.Details, d)
	}
	if err := errors.Join(errs...); err != nil {
		return Request{}, err
	}
	if len(req.Details) == 0 {
		return Request{}, ErrNoDetails
	}
	return req, nil
}

func detectColumns(header []string) columnMapping {
	m := columnMapping{Name: -1, Length: -1, Quantity: -1}
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "name", "detail", "label":
			m.Name = i
		case "length", "length (mm)", "len":
			m.Length = i
		case "quantity", "qty", "amount", "count":
			m.Quantity = i
		}
	}
	return m
}

func parseRow(row []string, m columnMapping) (cutting.Detail, error) {
	cell := func(i int) string {
		if i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}

	length, err := strconv.ParseFloat(cell(m.Length), 64)
	if err != nil {
		return cutting.Detail{}, fmt.Errorf("invalid length %q", cell(m.Length))
	}
	quantity, err := strconv.Atoi(cell(m.Quantity))
	if err != nil {
		return cutting.Detail{}, fmt.Errorf("invalid quantity %q", cell(m.Quantity))
	}
	return cutting.Detail{Name: cell(m.Name), Length: length, Amount: quantity}, nil
}

func validate(d cutting.Detail) error {
	switch {
	case strings.TrimSpace(d.Name) == "":
		return errors.New("name is required")
	case !cutting.ValidLength(d.Length):
		return fmt.Errorf("%s: length must be a finite positive number", d.Name)
	case d.Amount <= 0:
		return fmt.Errorf("%s: quantity must be positive", d.Name)
	}
	return nil
}

func isEmptyRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
