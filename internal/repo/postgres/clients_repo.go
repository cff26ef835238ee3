package postgres

import (
	"context"
	"errors"

	"github.com/geocoder89/shiftreports/internal/domain/client"
	"github.com/geocoder89/shiftreports/internal/observability"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ClientsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewClientsRepo(pool *pgxpool.Pool, prom *observability.Prom) *ClientsRepo {
	return &ClientsRepo{pool: pool, prom: prom}
}

func (r *ClientsRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

// ListClients orders by name with the "C" collation so ordering is byte-wise
// and independent of the server locale.
func (r *ClientsRepo) ListClients(ctx context.Context) ([]client.Client, error) {
	var rows pgx.Rows

	err := r.observe("clients.list", func() error {
		var err error
		rows, err = r.pool.Query(ctx, `
			SELECT id, name, phone, address, created_at
			FROM clients
			ORDER BY name COLLATE "C" ASC
		`)
		return err
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]client.Client, 0)
	for rows.Next() {
		var c client.Client
		if err := rows.Scan(&c.ID, &c.Name, &c.Phone, &c.Address, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}

	return out, rows.Err()
}

// CreateClient inserts with ON CONFLICT DO NOTHING. The unique constraint on
// name decides concurrent creations; the loser sees zero rows and gets ErrNameTaken.
func (r *ClientsRepo) CreateClient(ctx context.Context, req client.CreateClientRequest) (client.Client, error) {
	c := client.NewFromCreateRequest(req)

	err := r.observe("clients.create", func() error {
		return r.pool.QueryRow(ctx, `
			INSERT INTO clients (id, name, phone, address, created_at)
			VALUES ($1,$2,$3,$4,$5)
			ON CONFLICT ON CONSTRAINT clients_name_uniq DO NOTHING
			RETURNING id
		`, c.ID, c.Name, c.Phone, c.Address, c.CreatedAt).Scan(&c.ID)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isConstraint(err, "clients_name_uniq") {
			return client.Client{}, client.ErrNameTaken
		}
		return client.Client{}, err
	}

	return c, nil
}

func (r *ClientsRepo) GetClientByID(ctx context.Context, id string) (client.Client, error) {
	var c client.Client

	if uuid.Validate(id) != nil {
		return client.Client{}, client.ErrNotFound
	}

	err := r.observe("clients.get_by_id", func() error {
		return r.pool.QueryRow(ctx, `
			SELECT id, name, phone, address, created_at FROM clients WHERE id = $1
		`, id).Scan(&c.ID, &c.Name, &c.Phone, &c.Address, &c.CreatedAt)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return client.Client{}, client.ErrNotFound
		}
		return client.Client{}, err
	}
	return c, nil
}

func (r *ClientsRepo) CountClients(ctx context.Context) (int, error) {
	var n int
	err := r.observe("clients.count", func() error {
		return r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM clients`).Scan(&n)
	})
	return n, err
}
