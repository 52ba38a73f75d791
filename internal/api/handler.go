// Package api exposes the statement ingestion pipeline over HTTP.
// Preview and commit share the same upload parsing path so that what
// the user approves is exactly what gets imported.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/finwise/statement-ingest/internal/extractor"
	"github.com/finwise/statement-ingest/internal/models"
	"github.com/finwise/statement-ingest/internal/normalizer"
	"github.com/finwise/statement-ingest/internal/reconciler"
	"github.com/finwise/statement-ingest/internal/sniffer"
	"github.com/finwise/statement-ingest/internal/store"
)

const previewLimit = 20

// Handler holds the HTTP handlers for the import API.
type Handler struct {
	accounts store.AccountDirectory
	rec      *reconciler.Reconciler
	log      *zap.Logger
	ocr      bool
}

func NewHandler(accounts store.AccountDirectory, rec *reconciler.Reconciler, log *zap.Logger, ocr bool) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{accounts: accounts, rec: rec, log: log, ocr: ocr}
}

// RegisterRoutes sets up the HTTP routes.
func (h *Handler) RegisterRoutes(app *fiber.App) {
	app.Get("/api/health", h.HandleHealth)
	app.Post("/api/import/preview", h.HandlePreview)
	app.Post("/api/import/statement", h.HandleCommit)
}

func (h *Handler) HandleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "ok",
		"engine": "fiber",
	})
}

// upload is the parsed outcome of one statement file, before any
// reconciliation happens.
type upload struct {
	rows    []models.ParsedTransaction
	columns []string
	mapped  *models.ColumnMap
	skips   models.SkipCounts
}

type previewRow struct {
	Date        string           `json:"date"`
	Description string           `json:"description"`
	Amount      decimal.Decimal  `json:"amount"`
	Currency    string           `json:"currency"`
	Status      models.TxnStatus `json:"status"`
}

type previewResponse struct {
	TotalRows       int               `json:"totalRows"`
	Preview         []previewRow      `json:"preview"`
	DupPreviewCount int               `json:"dupPreviewCount"`
	Columns         []string          `json:"columns"`
	DetectedMap     *models.ColumnMap `json:"detectedMap"`
	SkippedRows     int               `json:"skippedRows"`
	SkipReasons     models.SkipCounts `json:"skipReasons"`
}

// HandlePreview parses the uploaded statement without persisting
// anything and reports what a commit would see: row totals, the first
// rows, the detected column mapping and a duplicate estimate.
func (h *Handler) HandlePreview(c *fiber.Ctx) error {
	userID := c.Get("X-User-ID")
	if userID == "" {
		return writeError(c, fiber.StatusUnauthorized, "Unauthorized")
	}

	up, err := h.parseUpload(c)
	if err != nil {
		return writeParseError(c, err)
	}

	head := up.rows
	if len(head) > previewLimit {
		head = head[:previewLimit]
	}

	// Preview dedup is user-wide: the destination account is not
	// decided until commit.
	dupCount, err := h.rec.CountDuplicates(c.Context(), userID, head)
	if err != nil {
		h.log.Error("preview duplicate check failed", zap.Error(err))
		return writeError(c, fiber.StatusInternalServerError, "Failed to check duplicates")
	}

	fallback := h.fallbackCurrency(c.Context(), userID, c.FormValue("accountType"))

	resp := previewResponse{
		TotalRows:       len(up.rows),
		Preview:         make([]previewRow, 0, len(head)),
		DupPreviewCount: dupCount,
		Columns:         up.columns,
		DetectedMap:     up.mapped,
		SkippedRows:     up.skips.Total(),
		SkipReasons:     up.skips,
	}
	for _, r := range head {
		currency := r.Currency
		if currency == "" {
			currency = fallback
		}
		status := r.Status
		if status == "" {
			status = models.StatusPosted
		}
		resp.Preview = append(resp.Preview, previewRow{
			Date:        r.Date.Format("2006-01-02"),
			Description: r.Description,
			Amount:      r.Amount,
			Currency:    currency,
			Status:      status,
		})
	}
	return c.JSON(resp)
}

// HandleCommit runs the full import: parse, reconcile, persist.
func (h *Handler) HandleCommit(c *fiber.Ctx) error {
	userID := c.Get("X-User-ID")
	if userID == "" {
		return writeError(c, fiber.StatusUnauthorized, "Unauthorized")
	}

	up, err := h.parseUpload(c)
	if err != nil {
		return writeParseError(c, err)
	}

	res, err := h.rec.Import(c.Context(), reconciler.ImportParams{
		UserID:           userID,
		Rows:             up.rows,
		DefaultAccountID: c.FormValue("defaultAccountId"),
		AccountType:      c.FormValue("accountType"),
		Scope:            reconciler.DedupScopeAccount,
	})
	if err != nil {
		if errors.Is(err, models.ErrImportFailed) {
			h.log.Error("import commit failed", zap.String("user", userID), zap.Error(err))
			return writeError(c, fiber.StatusInternalServerError, "Failed to import")
		}
		return writeError(c, fiber.StatusBadRequest, err.Error())
	}

	h.log.Info("statement imported",
		zap.String("user", userID),
		zap.Int("inserted", res.Inserted),
		zap.Int("skipped", res.Skipped))
	return c.JSON(res)
}

// parseUpload reads the multipart file and runs it through the
// format-appropriate half of the pipeline.
func (h *Handler) parseUpload(c *fiber.Ctx) (*upload, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return nil, errors.New("No file")
	}
	f, err := fh.Open()
	if err != nil {
		return nil, errors.New("No file")
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, models.ErrParse
	}

	format, err := sniffer.Detect(fh.Filename, fh.Header.Get("Content-Type"), data)
	if err != nil {
		return nil, err
	}

	switch format {
	case sniffer.FormatCSV:
		var explicit *models.ColumnMap
		if raw := c.FormValue("columnMap"); raw != "" {
			var m models.ColumnMap
			if jsonErr := json.Unmarshal([]byte(raw), &m); jsonErr != nil {
				return nil, models.ErrParse
			}
			explicit = &m
		}
		res, err := normalizer.ParseCSV(data, explicit)
		if err != nil {
			return nil, err
		}
		mapped := res.Map
		return &upload{rows: res.Rows, columns: res.Headers, mapped: &mapped, skips: res.Skips}, nil

	case sniffer.FormatPDF:
		useOCR := strings.EqualFold(c.FormValue("useOcr"), "true") && h.ocr
		rows, skips, err := h.parsePDF(c.Context(), data, useOCR)
		if err != nil {
			return nil, err
		}
		return &upload{rows: rows, skips: skips}, nil
	}
	return nil, models.ErrUnsupportedFormat
}

// parsePDF tries embedded-text extraction first and falls back to OCR
// when that fails or yields nothing usable.
func (h *Handler) parsePDF(ctx context.Context, data []byte, useOCR bool) ([]models.ParsedTransaction, models.SkipCounts, error) {
	lines, err := extractor.ExtractText(ctx, data)
	if err == nil {
		rows, skips := normalizer.ParseText(strings.Join(lines, "\n"))
		if len(rows) > 0 || !useOCR {
			return rows, skips, nil
		}
		h.log.Debug("text layer produced no rows, retrying with OCR")
	} else if !useOCR {
		return nil, models.SkipCounts{}, err
	} else {
		h.log.Debug("text extraction failed, retrying with OCR", zap.Error(err))
	}

	lines, ocrErr := extractor.ExtractTextOCR(ctx, data)
	if ocrErr != nil {
		if err != nil {
			return nil, models.SkipCounts{}, err
		}
		return nil, models.SkipCounts{}, ocrErr
	}
	rows, skips := normalizer.ParseText(strings.Join(lines, "\n"))
	return rows, skips, nil
}

// fallbackCurrency mirrors the commit-time inference cheaply: the first
// eligible account's currency, or USD when the user has none.
func (h *Handler) fallbackCurrency(ctx context.Context, userID, accountType string) string {
	accounts, err := h.accounts.ListEligible(ctx, userID, accountType)
	if err != nil || len(accounts) == 0 {
		return "USD"
	}
	return accounts[0].Currency
}

func writeParseError(c *fiber.Ctx, err error) error {
	return writeError(c, fiber.StatusBadRequest, err.Error())
}

func writeError(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{"error": msg})
}
