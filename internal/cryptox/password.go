package cryptox

import (
	"crypto/rand"
	"math/big"
)

const (
	lowerChars   = "abcdefghijkmnopqrstuvwxyz"
	upperChars   = "ABCDEFGHJKLMNPQRSTUVWXYZ"
	digitChars   = "23456789"
	specialChars = "!@#$%^&*-_=+?"

	// MinGeneratedLength is the shortest password GeneratePassword produces.
	MinGeneratedLength = 8
)

// GeneratePassword returns a random password of length n (at least
// MinGeneratedLength) that contains at least one lowercase letter, one
// uppercase letter, one digit, and one special character.
func GeneratePassword(n int) (string, error) {
	if n < MinGeneratedLength {
		n = MinGeneratedLength
	}
	classes := []string{lowerChars, upperChars, digitChars, specialChars}
	all := lowerChars + upperChars + digitChars + specialChars

	out := make([]byte, 0, n)
	for _, c := range classes {
		b, err := pick(c)
		if err != nil {
			return "", err
		}
		out = append(out, b)
	}
	for len(out) < n {
		b, err := pick(all)
		if err != nil {
			return "", err
		}
		out = append(out, b)
	}

	// Fisher–Yates so the guaranteed characters are not always in front.
	for i := len(out) - 1; i > 0; i-- {
		j, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return "", err
		}
		out[i], out[j.Int64()] = out[j.Int64()], out[i]
	}
	return string(out), nil
}

func pick(set string) (byte, error) {
	i, err := rand.Int(rand.Reader, big.NewInt(int64(len(set))))
	if err != nil {
		return 0, err
	}
	return set[i.Int64()], nil
}
