package auth

import (
	"errors"

	"github.com/dmitrijs2005/zeladoria/internal/common"
	"golang.org/x/crypto/bcrypt"
)

// PasswordCost is the bcrypt work factor.
const PasswordCost = 10

func HashPassword(password string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(password), PasswordCost)
}

// CheckPassword compares password with hash. A mismatch is reported as
// common.ErrInvalidCredentials.
func CheckPassword(hash []byte, password string) error {
	err := bcrypt.CompareHashAndPassword(hash, []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return common.ErrInvalidCredentials
	}
	return err
}
