package scheduling

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgMembershipDirectory reads clinic memberships from Postgres.
type PgMembershipDirectory struct {
	pool *pgxpool.Pool
}

func NewPgMembershipDirectory(pool *pgxpool.Pool) *PgMembershipDirectory {
	return &PgMembershipDirectory{pool: pool}
}

func (d *PgMembershipDirectory) FindMemberships(ctx context.Context, userID, clinicID uuid.UUID) ([]Membership, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT user_id, clinic_id, role, disabled, valid_from, valid_until
		FROM clinic_memberships
		WHERE user_id = $1 AND clinic_id = $2
	`, userID, clinicID)
	if err != nil {
		return nil, fmt.Errorf("query memberships: %w", err)
	}
	defer rows.Close()

	var memberships []Membership
	for rows.Next() {
		var m Membership
		if err := rows.Scan(&m.UserID, &m.ClinicID, &m.Role, &m.Disabled, &m.ValidFrom, &m.ValidUntil); err != nil {
			return nil, err
		}
		memberships = append(memberships, m)
	}
	return memberships, rows.Err()
}

// PgOwnerDirectory and PgAnimalDirectory back the existence checks.
type PgOwnerDirectory struct {
	pool *pgxpool.Pool
}

func NewPgOwnerDirectory(pool *pgxpool.Pool) *PgOwnerDirectory {
	return &PgOwnerDirectory{pool: pool}
}

func (d *PgOwnerDirectory) OwnerExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := d.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM owners WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check owner exists: %w", err)
	}
	return exists, nil
}

type PgAnimalDirectory struct {
	pool *pgxpool.Pool
}

func NewPgAnimalDirectory(pool *pgxpool.Pool) *PgAnimalDirectory {
	return &PgAnimalDirectory{pool: pool}
}

func (d *PgAnimalDirectory) AnimalExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := d.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM animals WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check animal exists: %w", err)
	}
	return exists, nil
}
