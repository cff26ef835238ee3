package postgres

import (
	"context"
	"errors"

	"github.com/geocoder89/shiftreports/internal/domain/client"
	"github.com/geocoder89/shiftreports/internal/domain/report"
	"github.com/geocoder89/shiftreports/internal/domain/user"
	"github.com/geocoder89/shiftreports/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ReportsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewReportsRepo(pool *pgxpool.Pool, prom *observability.Prom) *ReportsRepo {
	return &ReportsRepo{pool: pool, prom: prom}
}

func (repo *ReportsRepo) observe(op string, fn func() error) error {
	if repo.prom != nil {
		return repo.prom.ObserveDB(op, fn)
	}
	return fn()
}

func (repo *ReportsRepo) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return repo.pool.BeginTx(ctx, pgx.TxOptions{})
}

// CreateTx validates the client, bumps the owner's lifetime counter and inserts
// the report inside tx. The counter UPDATE also row-locks the owner, which
// orders it against a concurrent purge of the same user.
func (repo *ReportsRepo) CreateTx(ctx context.Context, tx pgx.Tx, req report.CreateReportRequest) (rep report.Report, err error) {
	var c client.Client

	err = repo.observe("reports.create_tx.client_lookup", func() error {
		return tx.QueryRow(ctx, `
			SELECT id, name, phone, address, created_at
			FROM clients
			WHERE id = $1
			FOR SHARE
		`, req.ClientID).Scan(&c.ID, &c.Name, &c.Phone, &c.Address, &c.CreatedAt)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = client.ErrNotFound
		}
		return
	}

	var tag pgconn.CommandTag

	err = repo.observe("reports.create_tx.bump_counter", func() error {
		var e error
		tag, e = tx.Exec(ctx, `
			UPDATE users
			SET submissions_count = submissions_count + 1,
			    updated_at = NOW()
			WHERE id = $1
		`, req.UserID)
		return e
	})

	if err != nil {
		return
	}

	if tag.RowsAffected() == 0 {
		err = user.ErrNotFound
		return
	}

	rep = report.NewFromCreateRequest(req, c)

	err = repo.observe("reports.create_tx.insert", func() error {
		return tx.QueryRow(ctx, `
			INSERT INTO reports (id, user_id, client_id, shift_timing, payment_received)
			VALUES ($1,$2,$3,$4,$5)
			RETURNING created_at
		`, rep.ID, rep.UserID, rep.ClientID, rep.ShiftTiming, rep.PaymentReceived).Scan(&rep.CreatedAt)
	})

	if err != nil {
		var pgErr *pgconn.PgError
		// client FK can only fail if the row vanished between lookup and insert
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			err = client.ErrNotFound
		}
		return
	}

	return
}

func (repo *ReportsRepo) CreateReport(ctx context.Context, req report.CreateReportRequest) (rep report.Report, err error) {
	tx, err := repo.BeginTx(ctx)
	if err != nil {
		return
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	rep, err = repo.CreateTx(ctx, tx, req)
	if err != nil {
		return
	}

	err = tx.Commit(ctx)
	return
}

// ListReportsByOwner returns the owner's reports newest first, joined with their client.
func (repo *ReportsRepo) ListReportsByOwner(ctx context.Context, ownerID string) (reports []report.Report, err error) {
	var rows pgx.Rows

	err = repo.observe("reports.list_by_owner", func() error {
		var e error
		rows, e = repo.pool.Query(ctx, `
			SELECT r.id, r.user_id, r.client_id, r.shift_timing, r.payment_received, r.created_at,
			       c.id, c.name, c.phone, c.address, c.created_at
			FROM reports r
			JOIN clients c ON c.id = r.client_id
			WHERE r.user_id = $1
			ORDER BY r.created_at DESC, r.seq DESC
		`, ownerID)
		return e
	})

	if err != nil {
		return
	}

	defer rows.Close()

	reports = make([]report.Report, 0)

	for rows.Next() {
		var r report.Report

		e := rows.Scan(
			&r.ID, &r.UserID, &r.ClientID, &r.ShiftTiming, &r.PaymentReceived, &r.CreatedAt,
			&r.Client.ID, &r.Client.Name, &r.Client.Phone, &r.Client.Address, &r.Client.CreatedAt,
		)
		if e != nil {
			err = e
			return
		}
		reports = append(reports, r)
	}

	e := rows.Err()

	if e != nil {
		if repo.prom != nil {
			repo.prom.DbErrorsTotal.WithLabelValues("reports.list_by_owner", "rows_err").Inc()
		}
		err = e
		return
	}

	return
}

// PurgeSubmitted deletes the captured ids of one owner and counts one batch in a
// single transaction. The owner row is locked first so two purges for the same
// user, or a purge and a report insert, never interleave.
func (repo *ReportsRepo) PurgeSubmitted(ctx context.Context, ownerID string, ids []string) (purged int64, err error) {
	tx, err := repo.BeginTx(ctx)
	if err != nil {
		return
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var locked string

	err = repo.observe("reports.purge.lock_owner", func() error {
		return tx.QueryRow(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, ownerID).Scan(&locked)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = user.ErrNotFound
		}
		return
	}

	if len(ids) > 0 {
		var tag pgconn.CommandTag

		err = repo.observe("reports.purge.delete", func() error {
			var e error
			tag, e = tx.Exec(ctx, `
				DELETE FROM reports
				WHERE user_id = $1 AND id::text = ANY($2::text[])
			`, ownerID, ids)
			return e
		})

		if err != nil {
			return
		}

		purged = tag.RowsAffected()
	}

	err = repo.observe("reports.purge.count_batch", func() error {
		_, e := tx.Exec(ctx, `
			UPDATE users
			SET batches_sent = batches_sent + 1,
			    updated_at = NOW()
			WHERE id = $1
		`, ownerID)
		return e
	})

	if err != nil {
		return
	}

	err = tx.Commit(ctx)
	return
}
