// Notetrace - Tracked Account Note Sync and Archival
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notetrace

package auth

import (
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// PasswordVerifier checks operator credentials against the configured admin
// account. The password is hashed once at startup so login requests pay only
// the bcrypt comparison.
type PasswordVerifier struct {
	username     string
	passwordHash []byte
}

// NewPasswordVerifier hashes the configured password with bcrypt cost 12.
func NewPasswordVerifier(username, password string) (*PasswordVerifier, error) {
	if username == "" {
		return nil, fmt.Errorf("username is required")
	}
	if len(password) < 8 {
		return nil, fmt.Errorf("password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), 12)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	return &PasswordVerifier{
		username:     username,
		passwordHash: hash,
	}, nil
}

// Verify reports whether the credentials match. Both comparisons run
// unconditionally so a wrong username costs the same as a wrong password.
func (v *PasswordVerifier) Verify(username, password string) bool {
	usernameMatch := subtle.ConstantTimeCompare([]byte(username), []byte(v.username)) == 1
	passwordMatch := bcrypt.CompareHashAndPassword(v.passwordHash, []byte(password)) == nil
	return usernameMatch && passwordMatch
}
