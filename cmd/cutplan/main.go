package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/alecthomas/kingpin/v2"
	"go.uber.org/zap"

	"github.com/eugenenazirov/tube-cutter/internal/cutting"
	"github.com/eugenenazirov/tube-cutter/internal/export"
	"github.com/eugenenazirov/tube-cutter/internal/importer"
	"github.com/eugenenazirov/tube-cutter/internal/logging"
)

type options struct {
	requestFile string
	capacity    float64
	xlsxOut     string
	pdfOut      string
}

func main() {
	kingpinApp := kingpin.New("cutplan", "Plans how to cut stock tubes into the details listed in a YAML or XLSX request file")
	requestFile := kingpinApp.Arg("request", "Request file (.yaml, .yml or .xlsx)").Required().ExistingFile()
	capacity := kingpinApp.Flag("capacity", "Usable length of one stock tube (overrides the request file)").Default("0").Float64()
	xlsxOut := kingpinApp.Flag("xlsx", "Write the plan to this XLSX file").String()
	pdfOut := kingpinApp.Flag("pdf", "Write the plan to this PDF file").String()
	logLevel := kingpinApp.Flag("log-level", "Minimum log level (debug, info, warn, error)").Default("warn").String()

	kingpin.MustParse(kingpinApp.Parse(os.Args[1:]))

	logger, err := logging.New(*logLevel)
	if err != nil {
		kingpinApp.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	opts := options{
		requestFile: *requestFile,
		capacity:    *capacity,
		xlsxOut:     *xlsxOut,
		pdfOut:      *pdfOut,
	}
	if err := run(opts, os.Stdout, logger); err != nil {
		logger.Error("planning failed", zap.Error(err))
		os.Exit(1)
	}
}

// run plans the request, prints the report to out and writes any exports.
// Unplaceable details are reported and returned as an error after the exports
// have been written.
func run(opts options, out io.Writer, logger *zap.Logger) error {
	req, err := readRequest(opts.requestFile)
	if err != nil {
		return err
	}

	capacity := cutting.DefaultCapacity
	if req.Capacity > 0 {
		capacity = req.Capacity
	}
	if opts.capacity > 0 {
		capacity = opts.capacity
	}

	plan, planErr := cutting.New(capacity).Optimize(req.Details)
	if planErr != nil && !errors.Is(planErr, cutting.ErrUnplaceableDetail) {
		return planErr
	}
	logger.Info("plan computed",
		zap.Float64("capacity", capacity),
		zap.Int("units", plan.TotalUnitsUsed),
		zap.Float64("waste", plan.TotalWaste),
	)

	if err := printReport(out, plan); err != nil {
		return fmt.Errorf("print report: %w", err)
	}

	if opts.xlsxOut != "" {
		if err := writeFile(opts.xlsxOut, func(w io.Writer) error { return export.WriteXLSX(w, plan) }); err != nil {
			return err
		}
		logger.Info("xlsx written", zap.String("path", opts.xlsxOut))
	}
	if opts.pdfOut != "" {
		if err := writeFile(opts.pdfOut, func(w io.Writer) error { return export.WritePDF(w, plan) }); err != nil {
			return err
		}
		logger.Info("pdf written", zap.String("path", opts.pdfOut))
	}

	return planErr
}

func readRequest(path string) (importer.Request, error) {
	f, err := os.Open(path)
	if err != nil {
		return importer.Request{}, fmt.Errorf("open request: %w", err)
	}
	defer f.Close()

	var req importer.Request
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		req, err = importer.ReadXLSX(f)
	default:
		req, err = importer.ReadYAML(f)
	}
	if err != nil {
		return importer.Request{}, fmt.Errorf("read %s: %w", path, err)
	}
	return req, nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func printReport(out io.Writer, plan cutting.CuttingPlan) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)

	fmt.Fprintf(tw, "Stock length:\t%g\n", plan.Capacity)
	fmt.Fprintf(tw, "Tubes needed:\t%d\n", plan.TotalUnitsUsed)
	fmt.Fprintf(tw, "Efficiency:\t%.1f%%\n", plan.Efficiency()*100)
	fmt.Fprintf(tw, "Waste:\t%g\n", plan.TotalWaste)
	fmt.Fprintln(tw)

	for _, g := range plan.Groups {
		rep := g.Units[0]
		pieces := make([]string, 0, len(rep.PlacedPieces))
		for _, p := range rep.PlacedPieces {
			pieces = append(pieces, fmt.Sprintf("%s %g", p.Name, p.Length))
		}
		fmt.Fprintf(tw, "%s\tx%d\t%s\twaste %g\n", g.Label, g.UnitCount, strings.Join(pieces, ", "), rep.RemainingCapacity)
	}

	if len(plan.LeftoverDetails) > 0 {
		fmt.Fprintln(tw)
		fmt.Fprintln(tw, "Not placed (longer than the stock):")
		for _, d := range plan.LeftoverDetails {
			fmt.Fprintf(tw, "  %s\t%g\tx%d\n", d.Name, d.Length, d.Amount)
		}
	}
	return tw.Flush()
}
