package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/geocoder89/shiftreports/internal/access"
	"github.com/geocoder89/shiftreports/internal/domain/client"
	"github.com/geocoder89/shiftreports/internal/domain/user"
	"github.com/geocoder89/shiftreports/internal/http/middlewares"
	"github.com/geocoder89/shiftreports/internal/submission"
	"github.com/gin-gonic/gin"
)

type APIError struct {
	Code      string      `json:"code"`
	Message   string      `json:"message"`
	RequestID string      `json:"requestId,omitempty"`
	Details   interface{} `json:"details,omitempty"`
}

func requestIDFrom(ctx *gin.Context) string {
	v, ok := ctx.Get(middlewares.CtxRequestID)

	if ok {
		s, ok := v.(string)
		if ok && s != "" {
			return s
		}
	}

	// fallback header
	return ctx.GetHeader("X-Request-Id")
}

func RespondError(ctx *gin.Context, status int, code, message string, details interface{}) {
	ctx.JSON(status, gin.H{
		"error": APIError{
			Code:      code,
			Message:   message,
			RequestID: requestIDFrom(ctx),
			Details:   details,
		},
	})
}

func RespondBadRequest(ctx *gin.Context, message string, details interface{}) {
	RespondError(ctx, http.StatusBadRequest, "invalid_request", message, details)
}

func RespondUnauthorized(ctx *gin.Context, code, message string) {
	RespondError(ctx, http.StatusUnauthorized, code, message, nil)
}

func RespondForbidden(ctx *gin.Context, code, message string) {
	RespondError(ctx, http.StatusForbidden, code, message, nil)
}

func RespondNotFound(ctx *gin.Context, code, message string) {
	RespondError(ctx, http.StatusNotFound, code, message, nil)
}

func RespondConflict(ctx *gin.Context, code, message string) {
	RespondError(ctx, http.StatusConflict, code, message, nil)
}

func RespondInternal(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusInternalServerError, "internal_error", message, nil)
}

// RespondDomainError maps the domain sentinels onto the error envelope.
// Anything unrecognised is logged and reported as a 500 with fallback as message.
func RespondDomainError(ctx *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, access.ErrUnauthenticated):
		RespondUnauthorized(ctx, "unauthorized", "Authentication required.")
	case errors.Is(err, user.ErrInvalidCredentials):
		RespondUnauthorized(ctx, "invalid_credentials", "Email or password is incorrect.")
	case errors.Is(err, user.ErrInactive):
		RespondForbidden(ctx, "account_inactive", "Account is inactive.")
	case errors.Is(err, access.ErrForbidden):
		RespondForbidden(ctx, "forbidden", "You are not allowed to do that.")
	case errors.Is(err, client.ErrNotFound):
		RespondNotFound(ctx, "client_not_found", "Client not found.")
	case errors.Is(err, user.ErrNotFound):
		RespondNotFound(ctx, "not_found", "User not found.")
	case errors.Is(err, client.ErrNameTaken):
		RespondConflict(ctx, "duplicate_name", "A client with this name already exists.")
	case errors.Is(err, user.ErrEmailTaken):
		RespondConflict(ctx, "duplicate_email", "Email is already in use.")
	case errors.Is(err, user.ErrInvalidRole):
		RespondBadRequest(ctx, "Invalid role", gin.H{"fields": []FieldError{{Field: "role", Rule: "oneof", Param: "admin user", Message: validationMessage("oneof", "admin user")}}})
	case errors.Is(err, submission.ErrInProgress):
		RespondConflict(ctx, "send_in_progress", "A send is already running for this account.")
	case errors.Is(err, submission.ErrDeliveryFailed):
		RespondError(ctx, http.StatusBadGateway, "delivery_failed", submission.DeliveryReason(err), nil)
	default:
		slog.Default().ErrorContext(ctx.Request.Context(), "request failed",
			"route", ctx.FullPath(),
			"request_id", requestIDFrom(ctx),
			"err", err,
		)
		RespondInternal(ctx, fallback)
	}
}

// currentUser returns the caller resolved by the auth middleware. Handlers
// mounted without it get a 401 rather than a zero user.
func currentUser(ctx *gin.Context) (user.User, bool) {
	u, ok := middlewares.UserFromContext(ctx)
	if !ok {
		RespondUnauthorized(ctx, "unauthorized", "Authentication required.")
		return user.User{}, false
	}
	return u, true
}
