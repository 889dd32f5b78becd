// Package credentials implements password hashing and verification using
// bcrypt. Hash is called once at registration and once at password update;
// Verify is called at login and before accepting a password change.
package credentials

import "golang.org/x/crypto/bcrypt"

// Hash derives a salted bcrypt hash from a plaintext password.
func Hash(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// Verify reports whether password matches hash. A malformed or empty stored
// hash verifies false; it never returns an error that could leak to a caller.
func Verify(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
