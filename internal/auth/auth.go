// Package auth verifies the clinic's static credentials. It gates the UI, not
// the data: a single shared account, configured at deploy time.
package auth

import (
	"crypto/subtle"
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// ErrBadCredentials is returned for any username or password mismatch. The
// two cases are deliberately indistinguishable.
var ErrBadCredentials = errors.New("invalid credentials")

// Authenticator checks a username and password against a single configured
// account. The password is stored as a bcrypt hash.
type Authenticator struct {
	username     string
	passwordHash []byte
}

// New builds an Authenticator for the given account. An empty hash disables
// login entirely; every attempt fails.
func New(username, passwordHash string) *Authenticator {
	return &Authenticator{username: username, passwordHash: []byte(passwordHash)}
}

// Verify returns nil when the credentials match the configured account.
func (a *Authenticator) Verify(username, password string) error {
	if len(a.passwordHash) == 0 {
		return ErrBadCredentials
	}
	userOK := subtle.ConstantTimeCompare([]byte(a.username), []byte(username)) == 1
	if err := bcrypt.CompareHashAndPassword(a.passwordHash, []byte(password)); err != nil || !userOK {
		return ErrBadCredentials
	}
	return nil
}

// HashPassword produces a bcrypt hash suitable for the configuration file.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
