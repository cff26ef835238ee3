package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/geocoder89/shiftreports/internal/domain/report"
	"github.com/geocoder89/shiftreports/internal/observability"
	"github.com/gin-gonic/gin"
)

type ReportStore interface {
	CreateReport(ctx context.Context, req report.CreateReportRequest) (report.Report, error)
	ListReportsByOwner(ctx context.Context, ownerID string) ([]report.Report, error)
}

type ReportsHandler struct {
	reports ReportStore
	prom    *observability.Prom
}

func NewReportsHandler(reports ReportStore, prom *observability.Prom) *ReportsHandler {
	return &ReportsHandler{reports: reports, prom: prom}
}

// CreateReport files a report owned by the caller. Any owner in the body is ignored.
func (h *ReportsHandler) CreateReport(ctx *gin.Context) {
	u, ok := currentUser(ctx)
	if !ok {
		return
	}

	var req report.CreateReportRequest

	if !BindJSON(ctx, &req) {
		return
	}
	req.UserID = u.ID

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	r, err := h.reports.CreateReport(cctx, req)
	if err != nil {
		RespondDomainError(ctx, err, "Could not create report")
		return
	}

	if h.prom != nil {
		h.prom.ReportsCreated.Inc()
	}

	ctx.JSON(http.StatusCreated, r)
}

func (h *ReportsHandler) ListMine(ctx *gin.Context) {
	u, ok := currentUser(ctx)
	if !ok {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	list, err := h.reports.ListReportsByOwner(cctx, u.ID)
	if err != nil {
		RespondDomainError(ctx, err, "Could not list reports")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"items": list, "count": len(list)})
}
