// Package api exposes the JSON surface the dashboard UI consumes. Every
// response carries a success flag; parse and ingest failures come back as a
// human-readable error message, never an unhandled error.
package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/insightdelivered/budget-tracker/internal/extractor"
	"github.com/insightdelivered/budget-tracker/internal/models"
	"github.com/insightdelivered/budget-tracker/internal/parser"
	"github.com/insightdelivered/budget-tracker/internal/reconcile"
	"github.com/insightdelivered/budget-tracker/internal/store"
	"github.com/insightdelivered/budget-tracker/internal/writer"
)

const dateLayout = "2006-01-02"

// Handler wires the engine and store into fiber routes.
type Handler struct {
	Engine *reconcile.Engine
	Store  *store.Store
	Log    zerolog.Logger
}

// Register sets up all routes on the app.
func (h *Handler) Register(app *fiber.App) {
	app.Get("/api/health", h.handleHealth)
	app.Post("/api/statements", h.handleUploadStatement)
	app.Get("/api/transactions", h.handleListTransactions)
	app.Post("/api/transactions", h.handleAddManual)
	app.Delete("/api/transactions/:id", h.handleDeleteManual)
	app.Get("/api/transactions/export", h.handleExportCSV)
	app.Get("/api/matches", h.handleFindMatches)
	app.Post("/api/validations", h.handleValidate)
	app.Get("/api/summary", h.handleSummary)
	app.Get("/api/summary/categories", h.handleCategorySummary)
	app.Get("/api/categories", h.handleListCategories)
	app.Post("/api/categories", h.handleAddCategory)
	app.Get("/api/budgets", h.handleListBudgets)
	app.Post("/api/budgets", h.handleAddBudget)
}

func (h *Handler) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok", "engine": "fiber"})
}

func fail(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{"success": false, "error": msg})
}

// handleUploadStatement accepts a multipart statement upload (xlsx or pdf),
// parses it and ingests the result with duplicate suppression.
func (h *Handler) handleUploadStatement(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "no file uploaded; use form field 'file'")
	}

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	var stmt *models.Statement

	switch ext {
	case ".xlsx", ".xls":
		f, err := fileHeader.Open()
		if err != nil {
			return fail(c, fiber.StatusBadRequest, "could not read uploaded file")
		}
		defer f.Close()
		rows, err := extractor.ExcelRows(f)
		if err != nil {
			return fail(c, fiber.StatusUnprocessableEntity, fmt.Sprintf("spreadsheet extraction failed: %v", err))
		}
		stmt, err = parser.Parse(rows)
		if err != nil {
			return parseFail(c, err)
		}

	case ".pdf":
		f, err := fileHeader.Open()
		if err != nil {
			return fail(c, fiber.StatusBadRequest, "could not read uploaded file")
		}
		defer f.Close()
		tmp, err := os.CreateTemp("", "statement-*.pdf")
		if err != nil {
			return fail(c, fiber.StatusInternalServerError, "could not buffer uploaded file")
		}
		defer os.Remove(tmp.Name())
		if _, err := io.Copy(tmp, f); err != nil {
			tmp.Close()
			return fail(c, fiber.StatusInternalServerError, "could not buffer uploaded file")
		}
		tmp.Close()
		tables, err := extractor.PDFTables(tmp.Name())
		if err != nil {
			return fail(c, fiber.StatusUnprocessableEntity, fmt.Sprintf("PDF extraction failed: %v", err))
		}
		stmt, err = parser.ParseTables(tables)
		if err != nil {
			return parseFail(c, err)
		}

	default:
		return fail(c, fiber.StatusBadRequest, fmt.Sprintf("unsupported file type %q; upload .xlsx or .pdf", ext))
	}

	if stmt.Diagnostics.SkippedRows > 0 {
		h.Log.Warn().
			Str("file", fileHeader.Filename).
			Int("skipped_rows", stmt.Diagnostics.SkippedRows).
			Msg("statement rows skipped during parse")
	}

	result, err := h.Engine.Ingest(c.Context(), stmt.Transactions)
	if err != nil {
		return fail(c, fiber.StatusInternalServerError, err.Error())
	}

	msg := fmt.Sprintf("processed %d new transaction(s)", result.Added)
	if result.Duplicates > 0 {
		msg += fmt.Sprintf(", skipped %d duplicate(s)", result.Duplicates)
	}
	return c.JSON(fiber.Map{
		"success":     true,
		"message":     msg,
		"added":       result.Added,
		"duplicates":  result.Duplicates,
		"diagnostics": stmt.Diagnostics,
	})
}

// parseFail maps parser errors onto the response envelope.
func parseFail(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, parser.ErrHeaderNotFound),
		errors.Is(err, parser.ErrColumnResolution),
		errors.Is(err, parser.ErrEmptyStatement):
		return fail(c, fiber.StatusUnprocessableEntity, err.Error())
	default:
		return fail(c, fiber.StatusInternalServerError, fmt.Sprintf("parsing failed: %v", err))
	}
}

type manualTransactionRequest struct {
	Date        string          `json:"date"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Category    string          `json:"category"`
	Kind        string          `json:"kind"`
	Reference   string          `json:"reference"`
}

func (h *Handler) handleAddManual(c *fiber.Ctx) error {
	var req manualTransactionRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid request body")
	}

	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "date must be YYYY-MM-DD")
	}
	kind := models.TransactionKind(req.Kind)
	if kind != models.KindDebit && kind != models.KindCredit {
		return fail(c, fiber.StatusBadRequest, "kind must be debit or credit")
	}
	if req.Amount.IsNegative() {
		return fail(c, fiber.StatusBadRequest, "amount must not be negative")
	}

	id, matches, err := h.Engine.AddManual(c.Context(), models.Transaction{
		Date:        date,
		Description: req.Description,
		Reference:   req.Reference,
		Kind:        kind,
		Amount:      req.Amount,
		Category:    req.Category,
	})
	if err != nil {
		return fail(c, fiber.StatusInternalServerError, err.Error())
	}

	if matches == nil {
		matches = []models.Transaction{}
	}
	return c.JSON(fiber.Map{
		"success":       true,
		"transactionId": id,
		"matches":       matches,
	})
}

func (h *Handler) handleListTransactions(c *fiber.Ctx) error {
	filter, err := filterFromQuery(c)
	if err != nil {
		return fail(c, fiber.StatusBadRequest, err.Error())
	}

	txns, err := h.Store.ListTransactions(c.Context(), filter)
	if err != nil {
		return fail(c, fiber.StatusInternalServerError, err.Error())
	}
	if txns == nil {
		txns = []models.Transaction{}
	}
	return c.JSON(fiber.Map{"success": true, "transactions": txns, "count": len(txns)})
}

func (h *Handler) handleDeleteManual(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid transaction id")
	}

	switch err := h.Engine.DeleteManual(c.Context(), id); {
	case err == nil:
		return c.JSON(fiber.Map{"success": true, "message": "transaction deleted"})
	case errors.Is(err, reconcile.ErrNotManual):
		return fail(c, fiber.StatusForbidden, err.Error())
	case errors.Is(err, store.ErrNotFound):
		return fail(c, fiber.StatusNotFound, err.Error())
	default:
		return fail(c, fiber.StatusInternalServerError, err.Error())
	}
}

func (h *Handler) handleExportCSV(c *fiber.Ctx) error {
	filter, err := filterFromQuery(c)
	if err != nil {
		return fail(c, fiber.StatusBadRequest, err.Error())
	}
	txns, err := h.Store.ListTransactions(c.Context(), filter)
	if err != nil {
		return fail(c, fiber.StatusInternalServerError, err.Error())
	}

	var buf bytes.Buffer
	w := &writer.CSVWriter{IncludeHeader: true}
	if err := w.Write(&buf, txns); err != nil {
		return fail(c, fiber.StatusInternalServerError, err.Error())
	}

	c.Set(fiber.HeaderContentType, "text/csv")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="transactions.csv"`)
	return c.Send(buf.Bytes())
}

func (h *Handler) handleFindMatches(c *fiber.Ctx) error {
	amount, err := decimal.NewFromString(c.Query("amount"))
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "amount query parameter is required")
	}
	date, err := time.Parse(dateLayout, c.Query("date"))
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "date query parameter must be YYYY-MM-DD")
	}
	tolerance := c.QueryInt("tolerance", reconcile.DefaultToleranceDays)

	matches, err := h.Engine.FindMatches(c.Context(), amount, date, tolerance)
	if err != nil {
		return fail(c, fiber.StatusInternalServerError, err.Error())
	}
	if matches == nil {
		matches = []models.Transaction{}
	}
	return c.JSON(fiber.Map{"success": true, "matches": matches})
}

type validationRequest struct {
	ManualTransactionID int64  `json:"manualTransactionId"`
	BankTransactionID   *int64 `json:"bankTransactionId"`
	Accepted            bool   `json:"accepted"`
}

func (h *Handler) handleValidate(c *fiber.Ctx) error {
	var req validationRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid request body")
	}

	err := h.Engine.Validate(c.Context(), req.ManualTransactionID, req.BankTransactionID, req.Accepted)
	switch {
	case err == nil:
		return c.JSON(fiber.Map{"success": true})
	case errors.Is(err, reconcile.ErrBankIDRequired),
		errors.Is(err, reconcile.ErrNotBankDebit):
		return fail(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, reconcile.ErrAlreadyMatched):
		return fail(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, store.ErrNotFound):
		return fail(c, fiber.StatusNotFound, err.Error())
	default:
		return fail(c, fiber.StatusInternalServerError, err.Error())
	}
}

func (h *Handler) handleSummary(c *fiber.Ctx) error {
	to, err := queryDate(c, "to", time.Now())
	if err != nil {
		return fail(c, fiber.StatusBadRequest, err.Error())
	}
	from, err := queryDate(c, "from", to.AddDate(0, 0, -30))
	if err != nil {
		return fail(c, fiber.StatusBadRequest, err.Error())
	}

	sum, err := h.Store.Summarize(c.Context(), from, to)
	if err != nil {
		return fail(c, fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(fiber.Map{"success": true, "summary": sum})
}

func (h *Handler) handleCategorySummary(c *fiber.Ctx) error {
	to, err := queryDate(c, "to", time.Now())
	if err != nil {
		return fail(c, fiber.StatusBadRequest, err.Error())
	}
	from, err := queryDate(c, "from", to.AddDate(0, 0, -30))
	if err != nil {
		return fail(c, fiber.StatusBadRequest, err.Error())
	}

	rows, err := h.Store.SummarizeByCategory(c.Context(), from, to, models.TransactionKind(c.Query("kind")))
	if err != nil {
		return fail(c, fiber.StatusInternalServerError, err.Error())
	}
	if rows == nil {
		rows = []models.CategorySummary{}
	}
	return c.JSON(fiber.Map{"success": true, "categories": rows})
}

func (h *Handler) handleListCategories(c *fiber.Ctx) error {
	cats, err := h.Store.ListCategories(c.Context())
	if err != nil {
		return fail(c, fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(fiber.Map{"success": true, "categories": cats})
}

func (h *Handler) handleAddCategory(c *fiber.Ctx) error {
	var cat models.Category
	if err := c.BodyParser(&cat); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid request body")
	}
	if cat.Name == "" {
		return fail(c, fiber.StatusBadRequest, "name is required")
	}
	switch cat.Type {
	case "income", "expense", "transfer":
	default:
		return fail(c, fiber.StatusBadRequest, "type must be income, expense or transfer")
	}

	id, err := h.Store.AddCategory(c.Context(), cat)
	if err != nil {
		return fail(c, fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(fiber.Map{"success": true, "id": id})
}

type budgetRequest struct {
	Category  string          `json:"category"`
	Amount    decimal.Decimal `json:"amount"`
	StartDate string          `json:"startDate"`
	EndDate   string          `json:"endDate"`
}

func (h *Handler) handleAddBudget(c *fiber.Ctx) error {
	var req budgetRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid request body")
	}
	start, err := time.Parse(dateLayout, req.StartDate)
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "startDate must be YYYY-MM-DD")
	}
	end, err := time.Parse(dateLayout, req.EndDate)
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "endDate must be YYYY-MM-DD")
	}
	if end.Before(start) {
		return fail(c, fiber.StatusBadRequest, "endDate must not be before startDate")
	}

	id, err := h.Store.AddBudget(c.Context(), models.Budget{
		Category:  req.Category,
		Amount:    req.Amount,
		StartDate: start,
		EndDate:   end,
	})
	if err != nil {
		return fail(c, fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(fiber.Map{"success": true, "id": id})
}

func (h *Handler) handleListBudgets(c *fiber.Ctx) error {
	var on time.Time
	if q := c.Query("on"); q != "" {
		var err error
		on, err = time.Parse(dateLayout, q)
		if err != nil {
			return fail(c, fiber.StatusBadRequest, "on must be YYYY-MM-DD")
		}
	}
	budgets, err := h.Store.ListBudgets(c.Context(), on)
	if err != nil {
		return fail(c, fiber.StatusInternalServerError, err.Error())
	}
	if budgets == nil {
		budgets = []models.Budget{}
	}
	return c.JSON(fiber.Map{"success": true, "budgets": budgets})
}

// filterFromQuery builds a transaction filter from from/to/category/kind
// query parameters.
func filterFromQuery(c *fiber.Ctx) (store.TransactionFilter, error) {
	var f store.TransactionFilter
	var err error
	if f.From, err = queryDate(c, "from", time.Time{}); err != nil {
		return f, err
	}
	if f.To, err = queryDate(c, "to", time.Time{}); err != nil {
		return f, err
	}
	f.Category = c.Query("category")
	if k := c.Query("kind"); k != "" {
		kind := models.TransactionKind(k)
		if kind != models.KindDebit && kind != models.KindCredit {
			return f, fmt.Errorf("kind must be debit or credit")
		}
		f.Kind = kind
	}
	return f, nil
}

func queryDate(c *fiber.Ctx, name string, fallback time.Time) (time.Time, error) {
	q := c.Query(name)
	if q == "" {
		return fallback, nil
	}
	t, err := time.Parse(dateLayout, q)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be YYYY-MM-DD", name)
	}
	return t, nil
}
