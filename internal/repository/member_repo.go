package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"memberbot/internal/domain"
)

var (
	ErrNotFound     = errors.New("member not found")
	ErrMemberExists = errors.New("member already exists")
)

// MemberRepository define el contrato de persistencia para miembros.
// La atomicidad por miembro la da service.MemberLocker, no el repositorio.
type MemberRepository interface {
	Create(ctx context.Context, member domain.Member) (domain.Member, error)
	GetByID(ctx context.Context, id int64) (domain.Member, error)
	GetByExternalID(ctx context.Context, externalUserID string) (domain.Member, error)
	Update(ctx context.Context, member domain.Member) error
	ListStale(ctx context.Context, states []domain.State, before time.Time) ([]domain.Member, error)
}

// PgMemberRepository implementa MemberRepository usando pgxpool.
type PgMemberRepository struct {
	pool *pgxpool.Pool
}

func NewPgMemberRepository(pool *pgxpool.Pool) *PgMemberRepository {
	return &PgMemberRepository{pool: pool}
}

const memberColumns = `id, external_user_id, display_name, phone, card_number, photo_url,
	qr_code_url, state, pending_phone, created_at, last_active_at`

func (r *PgMemberRepository) Create(ctx context.Context, member domain.Member) (domain.Member, error) {
	if err := member.Status.Validate(); err != nil {
		return domain.Member{}, err
	}
	const query = `
		INSERT INTO members (external_user_id, display_name, phone, card_number, photo_url,
			qr_code_url, state, pending_phone, created_at, last_active_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (external_user_id) DO NOTHING
		RETURNING id
	`
	err := r.pool.QueryRow(ctx, query,
		member.ExternalUserID,
		member.DisplayName,
		member.Phone,
		member.CardNumber,
		member.PhotoURL,
		member.QRCodeURL,
		int16(member.Status.State),
		nullable(member.Status.PendingPhone),
		member.CreatedAt,
		member.LastActiveAt,
	).Scan(&member.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Member{}, ErrMemberExists
	}
	if err != nil {
		return domain.Member{}, err
	}
	return member, nil
}

func (r *PgMemberRepository) GetByID(ctx context.Context, id int64) (domain.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members WHERE id = $1`
	return scanMember(r.pool.QueryRow(ctx, query, id))
}

func (r *PgMemberRepository) GetByExternalID(ctx context.Context, externalUserID string) (domain.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members WHERE external_user_id = $1`
	return scanMember(r.pool.QueryRow(ctx, query, externalUserID))
}

func (r *PgMemberRepository) Update(ctx context.Context, member domain.Member) error {
	if err := member.Status.Validate(); err != nil {
		return err
	}
	const query = `
		UPDATE members
		SET display_name = $2, phone = $3, card_number = $4, photo_url = $5, qr_code_url = $6,
			state = $7, pending_phone = $8, last_active_at = $9
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query,
		member.ID,
		member.DisplayName,
		member.Phone,
		member.CardNumber,
		member.PhotoURL,
		member.QRCodeURL,
		int16(member.Status.State),
		nullable(member.Status.PendingPhone),
		member.LastActiveAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PgMemberRepository) ListStale(ctx context.Context, states []domain.State, before time.Time) ([]domain.Member, error) {
	codes := make([]int16, 0, len(states))
	for _, s := range states {
		codes = append(codes, int16(s))
	}
	query := `SELECT ` + memberColumns + `
		FROM members
		WHERE state = ANY($1) AND last_active_at < $2
		ORDER BY last_active_at ASC`
	rows, err := r.pool.Query(ctx, query, codes, before)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []domain.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func scanMember(row pgx.Row) (domain.Member, error) {
	var (
		m       domain.Member
		state   int16
		pending *string
	)
	err := row.Scan(
		&m.ID,
		&m.ExternalUserID,
		&m.DisplayName,
		&m.Phone,
		&m.CardNumber,
		&m.PhotoURL,
		&m.QRCodeURL,
		&state,
		&pending,
		&m.CreatedAt,
		&m.LastActiveAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Member{}, ErrNotFound
	}
	if err != nil {
		return domain.Member{}, err
	}
	m.Status = domain.Status{State: domain.State(state)}
	if pending != nil {
		m.Status.PendingPhone = *pending
	}
	if err := m.Status.Validate(); err != nil {
		return domain.Member{}, fmt.Errorf("member %d: %w", m.ID, err)
	}
	return m, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
