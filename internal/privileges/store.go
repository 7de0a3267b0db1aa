package privileges

import (
	"context"
	"fmt"
	"strings"
	"time"

	"personastudio/internal/domain"
	"personastudio/internal/infra"
	"personastudio/internal/sqlinline"
)

// Account is one row of the privileged_accounts table.
type Account struct {
	Email     string    `json:"email"`
	Note      string    `json:"note"`
	GrantedAt time.Time `json:"granted_at"`
}

// Store keeps elevated accounts in Postgres.
type Store struct {
	db infra.SQLExecutor
}

func NewStore(db infra.SQLExecutor) *Store {
	return &Store{db: db}
}

func (s *Store) Grant(ctx context.Context, email, note string) (*Account, error) {
	email = domain.NormalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, domain.Invalid("email", "a valid email is required")
	}
	var acc Account
	row := s.db.QueryRow(ctx, sqlinline.QUpsertPrivilegedAccount, email, strings.TrimSpace(note))
	if err := row.Scan(&acc.Email, &acc.Note, &acc.GrantedAt); err != nil {
		return nil, fmt.Errorf("privileges: grant %s: %w", email, err)
	}
	return &acc, nil
}

// Revoke removes the account. Revoking an unknown email returns ErrNotFound.
func (s *Store) Revoke(ctx context.Context, email string) error {
	email = domain.NormalizeEmail(email)
	tag, err := s.db.Exec(ctx, sqlinline.QDeletePrivilegedAccount, email)
	if err != nil {
		return fmt.Errorf("privileges: revoke %s: %w", email, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) List(ctx context.Context) ([]Account, error) {
	rows, err := s.db.Query(ctx, sqlinline.QListPrivilegedAccounts)
	if err != nil {
		return nil, fmt.Errorf("privileges: list: %w", err)
	}
	defer rows.Close()

	var out []Account
	for rows.Next() {
		var acc Account
		if err := rows.Scan(&acc.Email, &acc.Note, &acc.GrantedAt); err != nil {
			return nil, fmt.Errorf("privileges: scan: %w", err)
		}
		out = append(out, acc)
	}
	return out, rows.Err()
}

func (s *Store) Resolve(ctx context.Context, email string) (domain.Privileges, error) {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return domain.StandardPrivileges(), nil
	}
	var acc Account
	err := s.db.QueryRow(ctx, sqlinline.QSelectPrivilegedAccount, email).Scan(&acc.Email, &acc.Note, &acc.GrantedAt)
	switch {
	case err == nil:
		return domain.ElevatedPrivileges(), nil
	case infra.IsNoRows(err):
		return domain.StandardPrivileges(), nil
	default:
		return domain.StandardPrivileges(), fmt.Errorf("privileges: resolve: %w", err)
	}
}
