package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/eugenenazirov/tube-cutter/internal/cutting"
)

func writeRequest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "request.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write request: %v", err)
	}
	return path
}

func TestRunPrintsReportAndExports(t *testing.T) {
	dir := t.TempDir()
	opts := options{
		requestFile: writeRequest(t, "details:\n  - {name: A, length: 2000, amount: 4}\n"),
		xlsxOut:     filepath.Join(dir, "plan.xlsx"),
		pdfOut:      filepath.Join(dir, "plan.pdf"),
	}

	var out bytes.Buffer
	if err := run(opts, &out, zaptest.NewLogger(t)); err != nil {
		t.Fatalf("run returned error: %v", err)
	}

	report := out.String()
	for _, want := range []string{"Tubes needed:", "2", "Type 1 (A)", "x2", "A 2000, A 2000", "waste 1500"} {
		if !strings.Contains(report, want) {
			t.Fatalf("expected report to contain %q, got:\n%s", want, report)
		}
	}
	for _, path := range []string{opts.xlsxOut, opts.pdfOut} {
		info, err := os.Stat(path)
		if err != nil || info.Size() == 0 {
			t.Fatalf("expected export at %s: %v", path, err)
		}
	}
}

func TestRunCapacityPrecedence(t *testing.T) {
	path := writeRequest(t, "capacity: 4000\ndetails:\n  - {name: A, length: 2000, amount: 4}\n")

	var out bytes.Buffer
	if err := run(options{requestFile: path}, &out, zaptest.NewLogger(t)); err != nil {
		t.Fatalf("run returned error: %v", err)
	}
	if !strings.Contains(out.String(), "Stock length:  4000") {
		t.Fatalf("expected request capacity to be used, got:\n%s", out.String())
	}

	out.Reset()
	if err := run(options{requestFile: path, capacity: 8000}, &out, zaptest.NewLogger(t)); err != nil {
		t.Fatalf("run returned error: %v", err)
	}
	if !strings.Contains(out.String(), "Stock length:  8000") {
		t.Fatalf("expected flag capacity to win, got:\n%s", out.String())
	}
}

func TestRunReportsUnplaceable(t *testing.T) {
	path := writeRequest(t, "details:\n  - {name: Y, length: 5600, amount: 1}\n")

	var out bytes.Buffer
	err := run(options{requestFile: path}, &out, zaptest.NewLogger(t))
	if !errors.Is(err, cutting.ErrUnplaceableDetail) {
		t.Fatalf("expected ErrUnplaceableDetail, got %v", err)
	}
	if !strings.Contains(out.String(), "Not placed") || !strings.Contains(out.String(), "Y") {
		t.Fatalf("expected leftover section, got:\n%s", out.String())
	}
}

func TestRunRejectsBadRequest(t *testing.T) {
	if err := run(options{requestFile: writeRequest(t, "details: []\n")}, &bytes.Buffer{}, zaptest.NewLogger(t)); err == nil {
		t.Fatalf("expected error for empty request")
	}
	if err := run(options{requestFile: filepath.Join(t.TempDir(), "missing.yaml")}, &bytes.Buffer{}, zaptest.NewLogger(t)); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
