package slangdict

import (
	"crypto/rand"
	"crypto/subtle"

	"golang.org/x/crypto/argon2"
)

type HashAndSalt struct {
	Hash []byte
	Salt []byte
}

// Parameters from:
// https://pkg.go.dev/golang.org/x/crypto/argon2#pkg-overview
func hashPassword(password []byte, salt []byte) []byte {
	return argon2.IDKey(password, salt, 1, 64*1024, 4, 32)
}

func HashAndSaltPassword(password []byte) (*HashAndSalt, error) {
	salt := make([]byte, 32)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	return &HashAndSalt{Hash: hashPassword(password, salt), Salt: salt}, nil
}

func CheckPassword(password []byte, hashAndSalt HashAndSalt) bool {
	hash := hashPassword(password, hashAndSalt.Salt)
	return subtle.ConstantTimeCompare(hash, hashAndSalt.Hash) == 1
}
