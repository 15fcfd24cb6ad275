package database

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	fferrors "github.com/fireflymap/api/pkg/errors"
)

type Species struct {
	ID             uint   `json:"id" gorm:"primaryKey"`
	Name           string `json:"name" gorm:"uniqueIndex;not null"`
	ScientificName string `json:"scientific_name"`
	Color          string `json:"color"`
	FlashPattern   string `json:"flash_pattern"`
	ImageURL       string `json:"image_url"`
}

func (Species) TableName() string {
	return "species"
}

func ListSpecies(ctx context.Context, db *gorm.DB) ([]Species, error) {
	species := []Species{}
	res := db.WithContext(ctx).Order("name").Find(&species)
	return species, res.Error
}

func GetSpecies(ctx context.Context, db *gorm.DB, id uint) (*Species, error) {
	var s Species
	if err := db.WithContext(ctx).First(&s, id).Error; err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("species %d: %w", id, fferrors.ErrNotFound)
		}
		return nil, err
	}

	return &s, nil
}

func CreateSpecies(ctx context.Context, db *gorm.DB, s *Species) error {
	err := db.WithContext(ctx).Create(s).Error
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: species %q already exists", fferrors.ErrConflict, s.Name)
	}
	return err
}

func speciesExists(tx *gorm.DB, id uint) error {
	var count int64
	if err := tx.Model(&Species{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("%w: unknown species_id %d", fferrors.ErrValidation, id)
	}
	return nil
}
