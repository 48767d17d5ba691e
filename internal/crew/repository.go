package crew

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-fleet/meridian/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const memberColumns = `id, company_id, first_name, last_name, rank, vessel_id, department,
	nationality, email, phone, next_of_kin, salary, medical_notes,
	sign_on_date, sign_off_date, created_at, updated_at`

func scanMember(row pgx.Row) (Member, error) {
	var m Member
	err := row.Scan(&m.ID, &m.CompanyID, &m.FirstName, &m.LastName, &m.Rank, &m.VesselID, &m.Department,
		&m.Nationality, &m.Email, &m.Phone, &m.NextOfKin, &m.Salary, &m.MedicalNotes,
		&m.SignOnDate, &m.SignOffDate, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}

// GetMember fetches one crew record.
func (r *Repository) GetMember(ctx context.Context, companyID int64, id string) (Member, error) {
	m, err := scanMember(r.pool.QueryRow(ctx,
		`SELECT `+memberColumns+` FROM crew_members WHERE company_id = $1 AND id = $2`,
		companyID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Member{}, shared.ErrNotFound
		}
		return Member{}, fmt.Errorf("crew: get member: %w", err)
	}
	return m, nil
}

// ListMembers returns crew records matching the filter, ordered by name.
func (r *Repository) ListMembers(ctx context.Context, companyID int64, filter ListFilter) ([]Member, error) {
	query := `SELECT ` + memberColumns + ` FROM crew_members WHERE company_id = $1`
	args := []any{companyID}
	if filter.VesselID != "" {
		args = append(args, filter.VesselID)
		query += fmt.Sprintf(" AND vessel_id = $%d", len(args))
	}
	if filter.Department != "" {
		args = append(args, filter.Department)
		query += fmt.Sprintf(" AND department = $%d", len(args))
	}
	if filter.RankLike != "" {
		args = append(args, "%"+strings.ToLower(filter.RankLike)+"%")
		query += fmt.Sprintf(" AND LOWER(rank) LIKE $%d", len(args))
	}
	query += " ORDER BY last_name, first_name"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("crew: list members: %w", err)
	}
	defer rows.Close()

	var members []Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// UpdateOwnProfile applies the self-service profile fields.
func (r *Repository) UpdateOwnProfile(ctx context.Context, id string, input OwnProfileInput) (Member, error) {
	m, err := scanMember(r.pool.QueryRow(ctx,
		`UPDATE crew_members
		 SET phone = $2, email = $3, next_of_kin = $4, updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+memberColumns,
		id, input.Phone, input.Email, input.NextOfKin))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Member{}, shared.ErrNotFound
		}
		return Member{}, fmt.Errorf("crew: update own profile: %w", err)
	}
	return m, nil
}
