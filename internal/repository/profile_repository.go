package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/nurpe/obras-service/internal/model"
	"github.com/nurpe/obras-service/internal/remote"
)

var (
	ErrProfileNotFound = errors.New("profile not found")
	// ErrProfileSchema carries the DDL an operator has to run before report
	// branding can be stored.
	ErrProfileSchema = errors.New("profiles table is missing branding columns; run: " +
		"ALTER TABLE profiles ADD COLUMN IF NOT EXISTS report_logo TEXT, ADD COLUMN IF NOT EXISTS report_legend TEXT")
	ErrProfileTableMissing = errors.New("profiles table does not exist; apply the service migrations")
)

type ProfileRepository struct {
	db *gorm.DB
}

func NewProfileRepository(db *gorm.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

func (r *ProfileRepository) Get(ctx context.Context, id string) (*model.Profile, error) {
	var rows []map[string]interface{}
	err := r.db.WithContext(ctx).Table(remote.ProfilesTable).Where("id = ?", id).Limit(1).Find(&rows).Error
	if err != nil {
		return nil, profileError(err)
	}
	if len(rows) == 0 {
		return nil, ErrProfileNotFound
	}
	p, err := remote.ProfileFromRow(rows[0])
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Create inserts the profile row written at sign-up.
func (r *ProfileRepository) Create(ctx context.Context, p model.Profile) error {
	row := map[string]interface{}{
		"id":        p.ID,
		"full_name": p.FullName,
		"position":  p.Position,
	}
	err := r.db.WithContext(ctx).Table(remote.ProfilesTable).Create(row).Error
	return profileError(err)
}

func (r *ProfileRepository) UpdateBranding(ctx context.Context, id, logo, legend string) error {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE profiles
		SET report_logo = ?, report_legend = ?
		WHERE id = ?
	`, nullString(logo), nullString(legend), id)
	if res.Error != nil {
		return profileError(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrProfileNotFound
	}
	return nil
}

func profileError(err error) error {
	err = classify(err)
	if errors.Is(err, ErrSchema) {
		if isUndefinedTable(err) {
			return fmt.Errorf("%w: %w", ErrProfileTableMissing, err)
		}
		return fmt.Errorf("%w: %w", ErrProfileSchema, err)
	}
	return err
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
