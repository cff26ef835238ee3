package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/geocoder89/shiftreports/internal/access"
	"github.com/geocoder89/shiftreports/internal/domain/report"
	"github.com/geocoder89/shiftreports/internal/domain/user"
	"github.com/gin-gonic/gin"
)

type UserDirectory interface {
	GetByID(ctx context.Context, id string) (user.User, error)
	ListAll(ctx context.Context) ([]user.User, error)
	Stats(ctx context.Context) ([]user.Stats, error)
}

type ReportLister interface {
	ListReportsByOwner(ctx context.Context, ownerID string) ([]report.Report, error)
}

type AdminHandler struct {
	users   UserDirectory
	reports ReportLister
}

func NewAdminHandler(users UserDirectory, reports ReportLister) *AdminHandler {
	return &AdminHandler{users: users, reports: reports}
}

func (h *AdminHandler) ListUsers(ctx *gin.Context) {
	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	users, err := h.users.ListAll(cctx)
	if err != nil {
		RespondDomainError(ctx, err, "Could not list users")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"items": users, "count": len(users)})
}

// UserReports lists any user's reports for admins; other callers only get their own.
func (h *AdminHandler) UserReports(ctx *gin.Context) {
	caller, ok := currentUser(ctx)
	if !ok {
		return
	}

	ownerID := ctx.Param("id")

	if err := access.CanReadReportsOf(caller, ownerID); err != nil {
		RespondDomainError(ctx, err, "")
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	owner, err := h.users.GetByID(cctx, ownerID)
	if err != nil {
		RespondDomainError(ctx, err, "Could not load user")
		return
	}

	list, err := h.reports.ListReportsByOwner(cctx, owner.ID)
	if err != nil {
		RespondDomainError(ctx, err, "Could not list reports")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"user": owner.Stats(), "items": list, "count": len(list)})
}

func (h *AdminHandler) Stats(ctx *gin.Context) {
	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	stats, err := h.users.Stats(cctx)
	if err != nil {
		RespondDomainError(ctx, err, "Could not load stats")
		return
	}

	var filed, batches int
	for _, s := range stats {
		filed += s.SubmissionsCount
		batches += s.BatchesSent
	}

	ctx.JSON(http.StatusOK, gin.H{
		"users": stats,
		"totals": gin.H{
			"submissionsCount": filed,
			"batchesSent":      batches,
		},
	})
}
