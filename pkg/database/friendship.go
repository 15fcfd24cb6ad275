package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	fferrors "github.com/fireflymap/api/pkg/errors"
)

// Friendship is one undirected edge. UserID is always the smaller of the two
// ids so a pair can only be stored once.
type Friendship struct {
	ID        uint      `json:"-" gorm:"primaryKey"`
	UserID    uint      `json:"user_id" gorm:"not null;uniqueIndex:idx_friendship_pair"`
	FriendID  uint      `json:"friend_id" gorm:"not null;uniqueIndex:idx_friendship_pair;index"`
	CreatedAt time.Time `json:"created_at"`
}

var errSelfFriendship = errors.New("a user cannot befriend themselves")

func orderedPair(a, b uint) (uint, uint) {
	if a > b {
		return b, a
	}
	return a, b
}

func (f *Friendship) BeforeCreate(tx *gorm.DB) error {
	if f.UserID == f.FriendID {
		return errSelfFriendship
	}
	f.UserID, f.FriendID = orderedPair(f.UserID, f.FriendID)
	return nil
}

func edge(tx *gorm.DB, a, b uint) *gorm.DB {
	lo, hi := orderedPair(a, b)
	return tx.Model(&Friendship{}).Where("user_id = ? AND friend_id = ?", lo, hi)
}

// AddFriend links selfID with the user named username (any case). Adding an
// existing friend is a conflict.
func AddFriend(ctx context.Context, db *gorm.DB, selfID uint, username string) (*User, error) {
	var friend User

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.
			Where("username_key = ?", usernameKey(username)).
			Where("id <> ?", selfID).
			First(&friend).Error
		if err != nil {
			if isNotFound(err) {
				return fmt.Errorf("user %q: %w", username, fferrors.ErrNotFound)
			}
			return err
		}

		var count int64
		if err := edge(tx, selfID, friend.ID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("%w: already friends with %s", fferrors.ErrConflict, friend.Username)
		}

		if err := tx.Create(&Friendship{UserID: selfID, FriendID: friend.ID}).Error; err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: already friends with %s", fferrors.ErrConflict, friend.Username)
			}
			return err
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return &friend, nil
}

// ListFriends returns everyone sharing an edge with selfID.
func ListFriends(ctx context.Context, db *gorm.DB, selfID uint) ([]User, error) {
	tx := db.WithContext(ctx)

	low := tx.Model(&Friendship{}).Select("friend_id").Where("user_id = ?", selfID)
	high := tx.Model(&Friendship{}).Select("user_id").Where("friend_id = ?", selfID)

	friends := []User{}
	res := tx.
		Where("id IN (?) OR id IN (?)", low, high).
		Order("username_key").
		Find(&friends)

	return friends, res.Error
}

func RemoveFriend(ctx context.Context, db *gorm.DB, selfID, friendID uint) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		lo, hi := orderedPair(selfID, friendID)
		res := tx.Where("user_id = ? AND friend_id = ?", lo, hi).Delete(&Friendship{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("friendship with user %d: %w", friendID, fferrors.ErrNotFound)
		}
		return nil
	})
}

func AreFriends(ctx context.Context, db *gorm.DB, a, b uint) (bool, error) {
	var count int64
	err := edge(db.WithContext(ctx), a, b).Count(&count).Error
	return count > 0, err
}
