package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"memberbot/internal/domain"
)

// memberRow es el modelo GORM de la tabla members.
type memberRow struct {
	ID             int64  `gorm:"primaryKey;autoIncrement"`
	ExternalUserID string `gorm:"uniqueIndex;not null"`
	DisplayName    string
	Phone          string
	CardNumber     string
	PhotoURL       string
	QRCodeURL      string `gorm:"column:qr_code_url"`
	State          int    `gorm:"index:idx_members_state_last_active;not null"`
	PendingPhone   *string
	CreatedAt      time.Time
	LastActiveAt   time.Time `gorm:"index:idx_members_state_last_active"`
}

func (memberRow) TableName() string { return "members" }

// GormMemberRepository implementa MemberRepository sobre GORM (SQLite).
type GormMemberRepository struct {
	db *gorm.DB
}

func NewGormMemberRepository(db *gorm.DB) *GormMemberRepository {
	return &GormMemberRepository{db: db}
}

// Migrate crea o ajusta la tabla members.
func (r *GormMemberRepository) Migrate() error {
	return r.db.AutoMigrate(&memberRow{})
}

func (r *GormMemberRepository) Create(ctx context.Context, member domain.Member) (domain.Member, error) {
	if err := member.Status.Validate(); err != nil {
		return domain.Member{}, err
	}
	row := toRow(member)
	row.ID = 0
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "external_user_id"}}, DoNothing: true}).
		Create(&row)
	if res.Error != nil {
		return domain.Member{}, res.Error
	}
	if res.RowsAffected == 0 {
		return domain.Member{}, ErrMemberExists
	}
	member.ID = row.ID
	return member, nil
}

func (r *GormMemberRepository) GetByID(ctx context.Context, id int64) (domain.Member, error) {
	var row memberRow
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	return fromRowErr(row, err)
}

func (r *GormMemberRepository) GetByExternalID(ctx context.Context, externalUserID string) (domain.Member, error) {
	var row memberRow
	err := r.db.WithContext(ctx).Where("external_user_id = ?", externalUserID).First(&row).Error
	return fromRowErr(row, err)
}

func (r *GormMemberRepository) Update(ctx context.Context, member domain.Member) error {
	if err := member.Status.Validate(); err != nil {
		return err
	}
	row := toRow(member)
	res := r.db.WithContext(ctx).Model(&memberRow{}).Where("id = ?", member.ID).Updates(map[string]any{
		"display_name":   row.DisplayName,
		"phone":          row.Phone,
		"card_number":    row.CardNumber,
		"photo_url":      row.PhotoURL,
		"qr_code_url":    row.QRCodeURL,
		"state":          row.State,
		"pending_phone":  row.PendingPhone,
		"last_active_at": row.LastActiveAt,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GormMemberRepository) ListStale(ctx context.Context, states []domain.State, before time.Time) ([]domain.Member, error) {
	codes := make([]int, 0, len(states))
	for _, s := range states {
		codes = append(codes, int(s))
	}
	var rows []memberRow
	err := r.db.WithContext(ctx).
		Where("state IN ? AND last_active_at < ?", codes, before).
		Order("last_active_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	members := make([]domain.Member, 0, len(rows))
	for _, row := range rows {
		m, err := fromRow(row)
		if err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, nil
}

func toRow(m domain.Member) memberRow {
	return memberRow{
		ID:             m.ID,
		ExternalUserID: m.ExternalUserID,
		DisplayName:    m.DisplayName,
		Phone:          m.Phone,
		CardNumber:     m.CardNumber,
		PhotoURL:       m.PhotoURL,
		QRCodeURL:      m.QRCodeURL,
		State:          int(m.Status.State),
		PendingPhone:   nullable(m.Status.PendingPhone),
		CreatedAt:      m.CreatedAt,
		LastActiveAt:   m.LastActiveAt,
	}
}

func fromRowErr(row memberRow, err error) (domain.Member, error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Member{}, ErrNotFound
	}
	if err != nil {
		return domain.Member{}, err
	}
	return fromRow(row)
}

func fromRow(row memberRow) (domain.Member, error) {
	m := domain.Member{
		ID:             row.ID,
		ExternalUserID: row.ExternalUserID,
		DisplayName:    row.DisplayName,
		Phone:          row.Phone,
		CardNumber:     row.CardNumber,
		PhotoURL:       row.PhotoURL,
		QRCodeURL:      row.QRCodeURL,
		Status:         domain.Status{State: domain.State(row.State)},
		CreatedAt:      row.CreatedAt,
		LastActiveAt:   row.LastActiveAt,
	}
	if row.PendingPhone != nil {
		m.Status.PendingPhone = *row.PendingPhone
	}
	if err := m.Status.Validate(); err != nil {
		return domain.Member{}, fmt.Errorf("member %d: %w", m.ID, err)
	}
	return m, nil
}
