package hash

import (
	"golang.org/x/crypto/bcrypt"
)

// DummyHash is compared against when a login names an unknown user, so that
// path spends the same bcrypt work as a wrong password.
var DummyHash = mustHash("not-a-real-password-just-timing-padding")

func HashPassword(password string) (string, error) {
	hashbytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}

	return string(hashbytes), nil
}

// CheckPassword reports whether password matches hash. A malformed hash is a
// mismatch, not an error.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

type BcryptVerifier struct{}

func (BcryptVerifier) Verify(storedHash, candidate string) bool {
	return CheckPassword(storedHash, candidate)
}

func mustHash(password string) string {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		panic(err)
	}
	return string(h)
}
