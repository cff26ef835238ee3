package report

import (
	"errors"
	"strings"
	"time"

	"github.com/geocoder89/shiftreports/internal/domain/client"
	"github.com/google/uuid"
)

// Report is one shift report. UserID is fixed at creation.
type Report struct {
	ID              string        `json:"id"`
	UserID          string        `json:"userId"`
	ClientID        string        `json:"clientId"`
	ShiftTiming     string        `json:"shiftTiming"`
	PaymentReceived bool          `json:"paymentReceived"`
	CreatedAt       time.Time     `json:"createdAt"`
	Client          client.Client `json:"client"`
}

var ErrNotFound = errors.New("report not found")

type CreateReportRequest struct {
	UserID          string `json:"-"`
	ClientID        string `json:"clientId" binding:"required,uuid"`
	ShiftTiming     string `json:"shiftTiming" binding:"required,notblank,max=40"`
	PaymentReceived *bool  `json:"paymentReceived" binding:"required"`
}

func NewFromCreateRequest(req CreateReportRequest, c client.Client) Report {
	paid := false
	if req.PaymentReceived != nil {
		paid = *req.PaymentReceived
	}

	return Report{
		ID:              uuid.NewString(),
		UserID:          req.UserID,
		ClientID:        c.ID,
		ShiftTiming:     strings.TrimSpace(req.ShiftTiming),
		PaymentReceived: paid,
		CreatedAt:       time.Now().UTC(),
		Client:          c,
	}
}

// IDs returns the report ids in order.
func IDs(reports []Report) []string {
	ids := make([]string, 0, len(reports))
	for _, r := range reports {
		ids = append(ids, r.ID)
	}
	return ids
}
