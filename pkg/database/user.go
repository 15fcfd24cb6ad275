package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	fferrors "github.com/fireflymap/api/pkg/errors"
)

type User struct {
	ID             uint    `json:"id" gorm:"primaryKey"`
	Username       string  `json:"username" gorm:"size:32;not null"`
	UsernameKey    string  `json:"-" gorm:"size:32;uniqueIndex;not null"`
	PasswordHash   string  `json:"-" gorm:"not null"`
	ProfilePicture *string `json:"profile_picture"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"-"`
}

func usernameKey(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func (u *User) BeforeSave(tx *gorm.DB) error {
	u.UsernameKey = usernameKey(u.Username)
	return nil
}

// CreateUser inserts u. Usernames are unique regardless of case.
func CreateUser(ctx context.Context, db *gorm.DB, u *User) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		res := tx.Model(&User{}).Where("username_key = ?", usernameKey(u.Username)).Count(&count)
		if res.Error != nil {
			return res.Error
		}
		if count > 0 {
			return fmt.Errorf("%w: username %q is taken", fferrors.ErrConflict, u.Username)
		}

		if err := tx.Create(u).Error; err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: username %q is taken", fferrors.ErrConflict, u.Username)
			}
			return err
		}

		return nil
	})
}

func GetUserByID(ctx context.Context, db *gorm.DB, id uint) (*User, error) {
	var u User
	if err := db.WithContext(ctx).First(&u, id).Error; err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("user %d: %w", id, fferrors.ErrNotFound)
		}
		return nil, err
	}

	return &u, nil
}

// GetUserByUsername matches case-insensitively.
func GetUserByUsername(ctx context.Context, db *gorm.DB, username string) (*User, error) {
	var u User
	err := db.WithContext(ctx).Where("username_key = ?", usernameKey(username)).First(&u).Error
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("user %q: %w", username, fferrors.ErrNotFound)
		}
		return nil, err
	}

	return &u, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// SearchUsers returns users whose name contains query, ignoring case, minus
// the requester.
func SearchUsers(ctx context.Context, db *gorm.DB, query string, excludeID uint, limit int) ([]User, error) {
	if limit <= 0 {
		limit = 25
	}

	pattern := "%" + likeEscaper.Replace(usernameKey(query)) + "%"

	users := []User{}
	res := db.WithContext(ctx).
		Where(`username_key LIKE ? ESCAPE '\'`, pattern).
		Where("id <> ?", excludeID).
		Order("username_key").
		Limit(limit).
		Find(&users)

	return users, res.Error
}
