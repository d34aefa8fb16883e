package handler

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"kopiaku-reconciliation-backend/internal/export"
	"kopiaku-reconciliation-backend/internal/models"
	"kopiaku-reconciliation-backend/internal/repository"
	"kopiaku-reconciliation-backend/internal/services/matching"
	service "kopiaku-reconciliation-backend/internal/services/reconciliation"

	"github.com/gin-gonic/gin"
)

type ReconciliationHandler struct {
	service *service.Service
	txRepo  *repository.TransactionRepository
}

func NewReconciliationHandler(s *service.Service, txRepo *repository.TransactionRepository) *ReconciliationHandler {
	return &ReconciliationHandler{service: s, txRepo: txRepo}
}

// Upload parses the provider CSV, runs the matching pipeline and opens a
// reconciliation session.
func (h *ReconciliationHandler) Upload(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file required"})
		return
	}
	defer file.Close()

	view, err := h.service.StartSession(c.Request.Context(), header.Filename, file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, view)
}

func (h *ReconciliationHandler) GetSession(c *gin.Context) {
	view, err := h.service.GetSession(c.Param("sessionId"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, view)
}

// MatchRow binds a CSV row to a transaction chosen by the operator.
func (h *ReconciliationHandler) MatchRow(c *gin.Context) {
	var payload struct {
		TransactionID string `json:"transaction_id"`
	}
	if err := c.BindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	view, err := h.service.MatchRow(c.Param("sessionId"), c.Param("rowId"), payload.TransactionID)
	if err != nil {
		h.writeOverrideError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *ReconciliationHandler) CreateNewRow(c *gin.Context) {
	view, err := h.service.CreateNewRow(c.Param("sessionId"), c.Param("rowId"))
	if err != nil {
		h.writeOverrideError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *ReconciliationHandler) ClearRow(c *gin.Context) {
	view, err := h.service.ClearRow(c.Param("sessionId"), c.Param("rowId"))
	if err != nil {
		h.writeOverrideError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Submit sends the whole session to the transaction store. The session
// survives a failed submission so the operator can retry.
func (h *ReconciliationHandler) Submit(c *gin.Context) {
	count, err := h.service.Submit(c.Request.Context(), c.Param("sessionId"))
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":      "reconciliation submitted",
		"instructions": count,
	})
}

func (h *ReconciliationHandler) Discard(c *gin.Context) {
	if err := h.service.Discard(c.Param("sessionId")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "session discarded"})
}

// ExportReport streams the session as an XLSX workbook.
func (h *ReconciliationHandler) ExportReport(c *gin.Context) {
	sess, err := h.service.Session(c.Param("sessionId"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	filename := fmt.Sprintf("reconciliation_%s.xlsx", time.Now().Format("20060102_150405"))
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")

	if err := export.WriteReport(sess, c.Writer); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// ListTransactions pages through stored transactions for the operator view.
func (h *ReconciliationHandler) ListTransactions(c *gin.Context) {
	status := c.DefaultQuery("status", models.TransactionUnverified)
	cursor := c.Query("cursor")
	limit := 50

	items, nextCursor, hasMore, err := h.txRepo.ListByStatus(c.Request.Context(), status, cursor, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"items":       items,
		"next_cursor": nextCursor,
		"has_more":    hasMore,
	})
}

func (h *ReconciliationHandler) writeOverrideError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
	case errors.Is(err, matching.ErrRowNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "row not found"})
	case errors.Is(err, matching.ErrTransactionNotFound):
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown transaction id"})
	case errors.Is(err, matching.ErrAlreadyClaimed):
		c.JSON(http.StatusConflict, gin.H{"error": "transaction already claimed by another row"})
	case errors.Is(err, matching.ErrRowImmutable):
		c.JSON(http.StatusConflict, gin.H{"error": "auto-matched rows cannot be changed"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
