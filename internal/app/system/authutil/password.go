// Package authutil holds password and email rules shared by signup,
// password reset and the super-admin bootstrap.
package authutil

import (
	"errors"
	"strings"

	"github.com/dalemusser/camphub/internal/app/system/normalize"
	"github.com/dalemusser/waffle/pantry/validate"
	"golang.org/x/crypto/bcrypt"
)

const (
	MinPasswordLength = 8
	MaxPasswordLength = 72 // bcrypt ignores bytes past 72
)

var (
	ErrPasswordTooShort = errors.New("password is too short")
	ErrPasswordTooLong  = errors.New("password is too long")
	ErrPasswordCommon   = errors.New("password is too common")
	ErrInvalidEmail     = errors.New("invalid email address")
)

var commonPasswords = map[string]struct{}{
	"password": {}, "password1": {}, "12345678": {}, "123456789": {},
	"qwertyuiop": {}, "iloveyou": {}, "sunshine": {}, "football": {},
	"baseball": {}, "letmein1": {}, "welcome1": {}, "abcdefgh": {},
}

// ValidatePassword enforces length bounds and rejects well-known passwords.
func ValidatePassword(pw string) error {
	switch {
	case len(pw) < MinPasswordLength:
		return ErrPasswordTooShort
	case len(pw) > MaxPasswordLength:
		return ErrPasswordTooLong
	}
	if _, ok := commonPasswords[strings.ToLower(pw)]; ok {
		return ErrPasswordCommon
	}
	return nil
}

// HashPassword returns the bcrypt hash of pw.
func HashPassword(pw string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// CheckPassword reports whether pw matches hash.
func CheckPassword(pw, hash string) bool {
	if pw == "" || hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

// ValidEmail normalizes s and checks it looks like an address.
func ValidEmail(s string) (string, error) {
	e := normalize.Email(s)
	if e == "" || !validate.SimpleEmailValid(e) {
		return "", ErrInvalidEmail
	}
	return e, nil
}
