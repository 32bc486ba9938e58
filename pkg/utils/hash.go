package utils

import "golang.org/x/crypto/bcrypt"

// HashPassword derives a bcrypt hash with a fresh random salt at
// DefaultCost, which keeps hashing in the tens of milliseconds.
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// CheckPassword reports whether plain matches the stored bcrypt hash.
// A malformed hash comes back false rather than as a distinct error.
func CheckPassword(plain, hashed string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain)) == nil
}
