/**
 * scanfile - Local one-shot scan mode
 *
 * Scans every PDF in a directory without Redis, PostgreSQL or any
 * service dependency. Results go to a batch CSV; fully decoded files
 * move to done/, incomplete ones to review/ for manual handling.
 *
 * Intended for desk-side batches and for verifying a structure
 * document before wiring the worker into the upload pipeline.
 */

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/divyamanand/campx-qr-client-sub001/internal/decode"
	"github.com/divyamanand/campx-qr-client-sub001/internal/render"
	"github.com/divyamanand/campx-qr-client-sub001/internal/scan"
	"github.com/divyamanand/campx-qr-client-sub001/internal/storage"
	"github.com/divyamanand/campx-qr-client-sub001/internal/structure"
)

func main() {
	var (
		inputDir      = flag.String("dir", ".", "directory containing PDF files to scan")
		structurePath = flag.String("structure", "", "path to the expected-codes JSON document")
		codesSpec     = flag.String("codes", "", "inline expectation for every page, e.g. QR=1,BARCODE=2 (ignored when -structure is set)")
		outputDir     = flag.String("out", "", "directory for the batch CSV (default: the input directory)")
		maxScale      = flag.Float64("max-scale", 0, "override the maximum render scale")
		noRotation    = flag.Bool("no-rotation", false, "disable the 180-degree fallback pass")
		move          = flag.Bool("move", true, "move finished files into done/ and review/")
	)
	flag.Parse()

	st, err := loadStructure(*structurePath, *codesSpec)
	if err != nil {
		log.Fatalf("Failed to load expectations: %v", err)
	}

	files, err := listPDFs(*inputDir)
	if err != nil {
		log.Fatalf("Failed to list input directory: %v", err)
	}
	if len(files) == 0 {
		log.Fatalf("No PDF files found in %s", *inputDir)
	}

	csvDir := *outputDir
	if csvDir == "" {
		csvDir = *inputDir
	}
	exporter, err := storage.NewCSVExporter(csvDir, time.Now().Format("2006-01-02_150405"))
	if err != nil {
		log.Fatalf("Failed to create CSV exporter: %v", err)
	}
	defer exporter.Close()

	cfg := scan.DefaultLadderConfig()
	if *maxScale > 0 {
		cfg.MaxScale = *maxScale
	}
	if *noRotation {
		cfg.Rotation = false
	}

	log.Printf("Scanning %d file(s) from %s (max scale %.1f, rotation %v)",
		len(files), *inputDir, cfg.MaxScale, cfg.Rotation)
	log.Printf("Results: %s", exporter.Path())

	ctx := context.Background()
	decoder := decode.NewZXingDecoder()

	var filesComplete, filesForReview, totalCodes int
	for _, path := range files {
		complete, codes, err := scanFile(ctx, path, st, decoder, cfg, exporter)
		if err != nil {
			log.Printf("ERROR: %s: %v", filepath.Base(path), err)
			filesForReview++
			continue
		}
		totalCodes += codes

		dest := "review"
		if complete {
			filesComplete++
			dest = "done"
		} else {
			filesForReview++
		}
		if *move {
			if err := moveFile(path, filepath.Join(*inputDir, dest)); err != nil {
				log.Printf("WARNING: could not move %s: %v", filepath.Base(path), err)
			}
		}
	}

	log.Printf("===========================================")
	log.Printf("Batch finished: %d complete, %d for review, %d code(s) decoded",
		filesComplete, filesForReview, totalCodes)
	if filesForReview > 0 {
		os.Exit(1)
	}
}

// scanFile runs the full ladder over every page of one PDF
func scanFile(ctx context.Context, path string, st *structure.Structure, decoder *decode.ZXingDecoder, cfg scan.LadderConfig, exporter *storage.CSVExporter) (bool, int, error) {
	fileName := filepath.Base(path)
	log.Printf("--- %s", fileName)

	doc, err := render.OpenFile(path)
	if err != nil {
		return false, 0, fmt.Errorf("failed to open: %w", err)
	}
	defer doc.Close()

	scanner, err := scan.NewScanner(doc, decoder, cfg)
	if err != nil {
		return false, 0, err
	}

	complete := true
	codes := 0
	for page := 1; page <= doc.PageCount(); page++ {
		result, scanErr := scanner.ScanPage(ctx, page, st.Resolve(page))
		if result == nil {
			return false, codes, scanErr
		}
		if scanErr != nil && scanErr != scan.ErrNoCodesFound {
			return false, codes, scanErr
		}

		codes += len(result.Codes)
		if !result.Complete {
			complete = false
		}
		for _, c := range result.Codes {
			log.Printf("    page %d: %s %s", page, c.Type, c.Value)
		}
		if !result.Complete {
			log.Printf("    page %d: INCOMPLETE (%d/%d after %d attempt(s))",
				page, len(result.Codes), result.Expectation.TotalRequired(), len(result.Attempts))
		}

		if err := exporter.AppendPage(fileName, result); err != nil {
			log.Printf("WARNING: failed to record page %d: %v", page, err)
		}
	}

	return complete, codes, nil
}

// loadStructure builds expectations from a structure file or the -codes flag
func loadStructure(path, codesSpec string) (*structure.Structure, error) {
	if path != "" {
		return structure.Load(path)
	}
	if codesSpec == "" {
		log.Printf("WARNING: no -structure or -codes given, pages will not be checked for completeness")
		return structure.Parse([]byte(`{"pages":[]}`))
	}

	codes := make(map[string]int)
	for _, part := range strings.Split(codesSpec, ",") {
		name, count, found := strings.Cut(strings.TrimSpace(part), "=")
		n := 1
		if found {
			if _, err := fmt.Sscanf(count, "%d", &n); err != nil {
				return nil, fmt.Errorf("invalid count in %q", part)
			}
		}
		codes[strings.ToUpper(name)] = n
	}
	return structure.Single(codes)
}

// listPDFs returns the PDF files directly under dir, sorted by name
func listPDFs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// moveFile moves a file into destDir, creating the directory as needed
func moveFile(path, destDir string) error {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return err
	}
	return os.Rename(path, filepath.Join(destDir, filepath.Base(path)))
}
