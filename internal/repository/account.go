package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dreyes86/poolwatch/internal/model"
)

var ErrNotFound = errors.New("not found")

type AccountRepository struct {
	pool *pgxpool.Pool
}

func NewAccountRepository(pool *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{pool: pool}
}

// Ensure upserts an account by name and returns its id. Called once per
// configured account at run start.
func (r *AccountRepository) Ensure(ctx context.Context, name, group string) (int, error) {
	var id int
	err := r.pool.QueryRow(ctx,
		`INSERT INTO accounts (name, group_label)
		 VALUES ($1, $2)
		 ON CONFLICT (name) DO UPDATE SET group_label = EXCLUDED.group_label
		 RETURNING id`,
		name, group,
	).Scan(&id)
	return id, err
}

func (r *AccountRepository) ListActive(ctx context.Context) ([]model.Account, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, group_label, active FROM accounts WHERE active ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []model.Account
	for rows.Next() {
		var a model.Account
		if err := rows.Scan(&a.ID, &a.Name, &a.Group, &a.Active); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}
