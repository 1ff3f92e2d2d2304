package utils

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// PasswordCost keeps a single hash in the tens of milliseconds
const PasswordCost = 10

// MaxPasswordBytes is the longest input bcrypt accepts
const MaxPasswordBytes = 72

// dummyHash is compared against when the account does not exist so a failed
// login costs the same whether or not the username is known.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("imf-dummy-password"), PasswordCost)

// HashPassword returns a salted bcrypt hash
// Output format: $2a$10$<22 char salt><31 char hash>
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), PasswordCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword checks if password matches hash. A mismatch is not an error.
func VerifyPassword(password, encodedHash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(password))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, err
}

// BurnPasswordCheck spends the same work as VerifyPassword against a fixed hash
func BurnPasswordCheck(password string) {
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
}
