package database

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	fferrors "github.com/fireflymap/api/pkg/errors"
	"github.com/fireflymap/api/pkg/geo"
)

type Sighting struct {
	ID     uint  `json:"id" gorm:"primaryKey"`
	UserID uint  `json:"user_id" gorm:"not null;index"`
	User   *User `json:"-" gorm:"constraint:OnDelete:CASCADE"`

	SpeciesID *uint    `json:"species_id" gorm:"index"`
	Species   *Species `json:"species,omitempty" gorm:"constraint:OnDelete:SET NULL"`

	Place       string    `json:"place" gorm:"size:255"`
	ObservedAt  time.Time `json:"observed_at" gorm:"not null;index"`
	Description string    `json:"description"`
	Latitude    float64   `json:"latitude" gorm:"not null;index:idx_sightings_location"`
	Longitude   float64   `json:"longitude" gorm:"not null;index:idx_sightings_location"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SightingChanges holds a partial update. Nil fields are left untouched.
// ClearSpecies unsets the species and wins over SpeciesID.
type SightingChanges struct {
	SpeciesID    *uint
	ClearSpecies bool

	Place       *string
	ObservedAt  *time.Time
	Description *string
	Latitude    *float64
	Longitude   *float64
}

func (c SightingChanges) columns() map[string]any {
	cols := map[string]any{}
	if c.ClearSpecies {
		cols["species_id"] = nil
	} else if c.SpeciesID != nil {
		cols["species_id"] = *c.SpeciesID
	}
	if c.Place != nil {
		cols["place"] = *c.Place
	}
	if c.ObservedAt != nil {
		cols["observed_at"] = c.ObservedAt.UTC()
	}
	if c.Description != nil {
		cols["description"] = *c.Description
	}
	if c.Latitude != nil {
		cols["latitude"] = *c.Latitude
	}
	if c.Longitude != nil {
		cols["longitude"] = *c.Longitude
	}
	return cols
}

// ListSightings returns the owner's sightings, newest observation first. A
// non-nil box limits results to sightings inside it, bounds included.
func ListSightings(ctx context.Context, db *gorm.DB, ownerID uint, box *geo.BoundingBox) ([]Sighting, error) {
	q := db.WithContext(ctx).
		Preload("Species").
		Where("user_id = ?", ownerID)

	if box != nil {
		q = q.
			Where("latitude BETWEEN ? AND ?", box.MinLat, box.MaxLat).
			Where("longitude BETWEEN ? AND ?", box.MinLng, box.MaxLng)
	}

	sightings := []Sighting{}
	res := q.Order("observed_at DESC").Order("id DESC").Find(&sightings)

	return sightings, res.Error
}

// loadOwned fetches a sighting and checks that ownerID owns it.
func loadOwned(tx *gorm.DB, id, ownerID uint) (*Sighting, error) {
	var s Sighting
	if err := tx.Preload("Species").First(&s, id).Error; err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("sighting %d: %w", id, fferrors.ErrNotFound)
		}
		return nil, err
	}

	if s.UserID != ownerID {
		return nil, fmt.Errorf("sighting %d belongs to another user: %w", id, fferrors.ErrForbidden)
	}

	return &s, nil
}

func GetSighting(ctx context.Context, db *gorm.DB, id, ownerID uint) (*Sighting, error) {
	return loadOwned(db.WithContext(ctx), id, ownerID)
}

// CreateSighting inserts s. The caller sets UserID. ID and timestamps are
// assigned here.
func CreateSighting(ctx context.Context, db *gorm.DB, s *Sighting) error {
	if s.UserID == 0 {
		return fmt.Errorf("%w: sighting has no owner", fferrors.ErrValidation)
	}

	s.ID = 0
	s.Species = nil
	if s.ObservedAt.IsZero() {
		s.ObservedAt = time.Now()
	}
	s.ObservedAt = s.ObservedAt.UTC()

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if s.SpeciesID != nil {
			if err := speciesExists(tx, *s.SpeciesID); err != nil {
				return err
			}
		}

		if err := tx.Omit("User", "Species").Create(s).Error; err != nil {
			return err
		}

		if s.SpeciesID != nil {
			var sp Species
			if err := tx.First(&sp, *s.SpeciesID).Error; err != nil {
				return err
			}
			s.Species = &sp
		}

		return nil
	})
}

// UpdateSighting merges changes into the sighting if ownerID owns it.
func UpdateSighting(ctx context.Context, db *gorm.DB, id, ownerID uint, changes SightingChanges) (*Sighting, error) {
	var updated *Sighting

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		s, err := loadOwned(tx, id, ownerID)
		if err != nil {
			return err
		}

		if changes.SpeciesID != nil && !changes.ClearSpecies {
			if err := speciesExists(tx, *changes.SpeciesID); err != nil {
				return err
			}
		}

		cols := changes.columns()
		if len(cols) > 0 {
			if err := tx.Model(&Sighting{ID: s.ID}).Updates(cols).Error; err != nil {
				return err
			}
		}

		updated, err = loadOwned(tx, id, ownerID)
		return err
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

func DeleteSighting(ctx context.Context, db *gorm.DB, id, ownerID uint) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := loadOwned(tx, id, ownerID); err != nil {
			return err
		}

		return tx.Delete(&Sighting{}, id).Error
	})
}

func CountSightings(ctx context.Context, db *gorm.DB, ownerID uint) (int64, error) {
	var count int64
	res := db.WithContext(ctx).Model(&Sighting{}).Where("user_id = ?", ownerID).Count(&count)
	return count, res.Error
}

// GetSightingPosition ranks users by number of sightings. Users without any
// sightings have no position and get 0.
func GetSightingPosition(ctx context.Context, db *gorm.DB, userID uint) (int64, error) {
	var position int64

	res := db.WithContext(ctx).Raw(`
		SELECT position
		FROM (
		  SELECT
		    user_id,
		    RANK() OVER (
		      ORDER BY COUNT(*) DESC
		    ) AS position
		    FROM sightings
		    GROUP BY user_id
		)
		AS ranked
		WHERE ranked.user_id = ?
	`, userID).Scan(&position)

	if res.Error != nil {
		return 0, res.Error
	}

	return position, nil
}
