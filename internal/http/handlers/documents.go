package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/geocoder89/shiftreports/internal/domain/user"
	"github.com/geocoder89/shiftreports/internal/submission"
	"github.com/gin-gonic/gin"
)

type Submitter interface {
	Fetch(ctx context.Context, u user.User) ([]byte, error)
	Send(ctx context.Context, u user.User) (submission.Result, error)
}

type DocumentsHandler struct {
	engine   Submitter
	filename string
}

func NewDocumentsHandler(engine Submitter, filename string) *DocumentsHandler {
	if filename == "" {
		filename = "reports.pdf"
	}
	return &DocumentsHandler{engine: engine, filename: filename}
}

// Fetch streams the caller's pending reports as a PDF without sending anything.
func (h *DocumentsHandler) Fetch(ctx *gin.Context) {
	u, ok := currentUser(ctx)
	if !ok {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 10*time.Second)
	defer cancel()

	doc, err := h.engine.Fetch(cctx, u)
	if err != nil {
		RespondDomainError(ctx, err, "Could not build document")
		return
	}

	ctx.Header("Content-Disposition", `attachment; filename="`+h.filename+`"`)
	ctx.Data(http.StatusOK, "application/pdf", doc)
}

func (h *DocumentsHandler) Send(ctx *gin.Context) {
	u, ok := currentUser(ctx)
	if !ok {
		return
	}

	res, err := h.engine.Send(ctx.Request.Context(), u)
	if err != nil {
		RespondDomainError(ctx, err, "Could not send reports")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"message":   "Reports sent.",
		"delivered": res.Delivered,
		"purged":    res.Purged,
	})
}
