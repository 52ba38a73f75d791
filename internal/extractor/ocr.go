package extractor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/finwise/statement-ingest/internal/models"
)

// ExtractTextOCR rasterizes each PDF page and runs Tesseract over the
// images, returning one string per recognized page. This is the opt-in
// path for scanned statements that have no text layer.
// Requires pdftoppm (poppler-utils) and tesseract on PATH.
func ExtractTextOCR(ctx context.Context, data []byte) ([]string, error) {
	if _, err := exec.LookPath("pdftoppm"); err != nil {
		return nil, fmt.Errorf("%w: pdftoppm not available (install poppler-utils)", models.ErrParse)
	}
	if _, err := exec.LookPath("tesseract"); err != nil {
		return nil, fmt.Errorf("%w: tesseract not available (install tesseract-ocr)", models.ErrParse)
	}

	tmpDir, err := os.MkdirTemp("", "ocr-pages-*")
	if err != nil {
		return nil, fmt.Errorf("creating temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	pdfPath := filepath.Join(tmpDir, "statement.pdf")
	if err := os.WriteFile(pdfPath, data, 0o600); err != nil {
		return nil, fmt.Errorf("writing temp pdf: %w", err)
	}

	// 300 DPI gives Tesseract enough resolution for statement tables.
	imgPrefix := filepath.Join(tmpDir, "page")
	cmd := exec.CommandContext(ctx, "pdftoppm", "-r", "300", "-png", pdfPath, imgPrefix)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("%w: pdftoppm failed: %v (output: %s)", models.ErrParse, err, string(out))
	}

	entries, err := os.ReadDir(tmpDir)
	if err != nil {
		return nil, fmt.Errorf("reading temp dir: %w", err)
	}
	var imageFiles []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".png") {
			imageFiles = append(imageFiles, filepath.Join(tmpDir, e.Name()))
		}
	}
	sort.Strings(imageFiles)
	if len(imageFiles) == 0 {
		return nil, fmt.Errorf("%w: pdftoppm produced no page images", models.ErrParse)
	}

	var pages []string
	for _, imgFile := range imageFiles {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		outBase := strings.TrimSuffix(imgFile, ".png") + "-ocr"
		// PSM 4: single column of text of variable sizes, which suits
		// statement layouts.
		cmd := exec.CommandContext(ctx, "tesseract", imgFile, outBase, "-l", "eng", "--psm", "4")
		if _, err := cmd.CombinedOutput(); err != nil {
			// some pages may still work
			continue
		}
		txt, err := os.ReadFile(outBase + ".txt")
		if err != nil {
			continue
		}
		text := strings.TrimSpace(string(txt))
		if text != "" {
			pages = append(pages, text)
		}
	}

	if len(pages) == 0 {
		return nil, fmt.Errorf("%w: OCR produced no text from %d page images", models.ErrParse, len(imageFiles))
	}
	return pages, nil
}

// IsOCRAvailable reports whether the external OCR tools are installed.
func IsOCRAvailable() bool {
	_, err1 := exec.LookPath("pdftoppm")
	_, err2 := exec.LookPath("tesseract")
	return err1 == nil && err2 == nil
}
