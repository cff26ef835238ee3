// Package submission runs the send workflow: compile a user's pending
// reports, deliver the document, then purge exactly what was delivered.
package submission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/geocoder89/shiftreports/internal/domain/report"
	"github.com/geocoder89/shiftreports/internal/domain/user"
	"github.com/geocoder89/shiftreports/internal/lock"
	"github.com/geocoder89/shiftreports/internal/notifications"
	"github.com/geocoder89/shiftreports/internal/observability"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var (
	ErrInProgress     = errors.New("a send is already in progress for this user")
	ErrDeliveryFailed = errors.New("delivery failed")
	ErrPurgeFailed    = errors.New("delivered but could not clear submitted reports")
)

const (
	ResultSent           = "sent"
	ResultDeliveryFailed = "delivery_failed"
	ResultPurgeFailed    = "purge_failed"
	ResultBusy           = "busy"

	DefaultFilename = "report.pdf"
)

type ReportStore interface {
	ListReportsByOwner(ctx context.Context, ownerID string) ([]report.Report, error)
	PurgeSubmitted(ctx context.Context, ownerID string, ids []string) (int64, error)
}

type Compiler interface {
	Compile(u user.User, reports []report.Report) ([]byte, error)
}

type Config struct {
	Recipient   string
	Subject     string
	Body        string
	Filename    string
	ContentType string
}

// Result describes one completed send.
type Result struct {
	Delivered int   `json:"delivered"`
	Purged    int64 `json:"purged"`
	Bytes     int   `json:"bytes"`
}

type Engine struct {
	reports  ReportStore
	compiler Compiler
	mailer   notifications.Mailer
	locker   lock.Locker
	prom     *observability.Prom
	log      *slog.Logger
	cfg      Config
}

func NewEngine(
	reports ReportStore,
	compiler Compiler,
	mailer notifications.Mailer,
	locker lock.Locker,
	prom *observability.Prom,
	log *slog.Logger,
	cfg Config,
) *Engine {
	if cfg.Filename == "" {
		cfg.Filename = DefaultFilename
	}
	if cfg.ContentType == "" {
		cfg.ContentType = "application/pdf"
	}
	if locker == nil {
		locker = lock.NewLocal()
	}
	if log == nil {
		log = slog.Default()
	}

	return &Engine{
		reports:  reports,
		compiler: compiler,
		mailer:   mailer,
		locker:   locker,
		prom:     prom,
		log:      log,
		cfg:      cfg,
	}
}

// Fetch compiles the caller's pending reports without sending or mutating anything.
func (e *Engine) Fetch(ctx context.Context, u user.User) ([]byte, error) {
	_, doc, err := e.compile(ctx, u)
	return doc, err
}

func (e *Engine) compile(ctx context.Context, u user.User) ([]report.Report, []byte, error) {
	reports, err := e.reports.ListReportsByOwner(ctx, u.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("list reports: %w", err)
	}

	doc, err := e.compiler.Compile(u, reports)
	if err != nil {
		return nil, nil, fmt.Errorf("compile document: %w", err)
	}

	return reports, doc, nil
}

// Send delivers the caller's pending reports and, only when delivery
// succeeds, removes the reports that went out. Reports filed while delivery
// is in flight are not in the captured set and stay for the next send.
func (e *Engine) Send(ctx context.Context, u user.User) (res Result, err error) {
	start := time.Now()
	result := ResultSent

	ctx, span := otel.Tracer("shiftreports/submission").Start(ctx, "submission.send")
	span.SetAttributes(attribute.String("user.id", u.ID))

	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, result)
		}
		span.SetAttributes(attribute.String("submission.result", result))
		span.End()

		if e.prom != nil {
			e.prom.ObserveSubmission(result, time.Since(start), res.Purged)
		}
	}()

	unlock, err := e.locker.TryLock(ctx, "send:"+u.ID)
	if err != nil {
		result = ResultBusy
		if errors.Is(err, lock.ErrLocked) {
			return Result{}, ErrInProgress
		}
		return Result{}, fmt.Errorf("acquire send lock: %w", err)
	}
	defer unlock()

	reports, doc, err := e.compile(ctx, u)
	if err != nil {
		result = ResultDeliveryFailed
		return Result{}, err
	}

	msg := notifications.Message{
		To:      e.cfg.Recipient,
		Subject: e.cfg.Subject,
		Body:    e.cfg.Body,
		Attachment: notifications.Attachment{
			Filename:    e.cfg.Filename,
			ContentType: e.cfg.ContentType,
			Data:        doc,
		},
	}

	err = e.mailer.Send(ctx, msg)
	if err != nil {
		result = ResultDeliveryFailed
		e.log.WarnContext(ctx, "submission.delivery_failed",
			"user_id", u.ID,
			"reports", len(reports),
			"err", err,
		)
		return Result{}, fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
	}

	res = Result{Delivered: len(reports), Bytes: len(doc)}

	// the mail is out; a cancelled request must not leave the batch behind
	purgeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	purged, err := e.reports.PurgeSubmitted(purgeCtx, u.ID, report.IDs(reports))
	if err != nil {
		result = ResultPurgeFailed
		e.log.ErrorContext(ctx, "submission.purge_failed",
			"user_id", u.ID,
			"reports", len(reports),
			"err", err,
		)
		return res, fmt.Errorf("%w: %w", ErrPurgeFailed, err)
	}
	res.Purged = purged

	e.log.InfoContext(ctx, "submission.sent",
		"user_id", u.ID,
		"reports", len(reports),
		"purged", purged,
		"bytes", len(doc),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return res, nil
}

// DeliveryReason is the downstream error text carried by an ErrDeliveryFailed.
func DeliveryReason(err error) string {
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		for _, inner := range joined.Unwrap() {
			if !errors.Is(inner, ErrDeliveryFailed) {
				return inner.Error()
			}
		}
	}
	return err.Error()
}
