package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"

	fferrors "github.com/fireflymap/api/pkg/errors"
)

// bcrypt ignores everything past 72 bytes, so longer passwords are refused
// rather than silently truncated.
const MaxPasswordBytes = 72

var PasswordCost = bcrypt.DefaultCost

func HashPassword(password string) (string, error) {
	if len(password) > MaxPasswordBytes {
		return "", fmt.Errorf("%w: password is longer than %d bytes", fferrors.ErrValidation, MaxPasswordBytes)
	}

	b, err := bcrypt.GenerateFromPassword([]byte(password), PasswordCost)
	if err != nil {
		return "", err
	}

	return string(b), nil
}

func CheckPassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return fferrors.ErrAuth
	}
	return nil
}
