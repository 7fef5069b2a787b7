package util

import (
	"crypto/rand"
	"math/big"

	"github.com/pkg/errors"
)

const base62Chars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

const minIDLength = 10

// GenID produces a fixed-length base62 identifier from crypto/rand and
// probes the store for collisions, regenerating up to 5 times. The id
// space (62^length) makes collisions negligible; the probe is a
// hardening measure, not a correctness requirement.
func GenID(length int, exists func(string) (bool, error)) (string, error) {
	if length < minIDLength {
		return "", errors.Errorf("id length %d below minimum %d", length, minIDLength)
	}
	for retry := 0; retry < 5; retry++ {
		buf := make([]byte, length)
		if _, err := rand.Read(buf); err != nil {
			return "", errors.Wrap(err, "rand fail")
		}
		num := new(big.Int).SetBytes(buf)
		id := toBase62(num, length)
		exist, err := exists(id)
		if err != nil {
			return "", err
		}
		if !exist {
			return id, nil
		}
	}
	return "", errors.New("id collision after 5 retries")
}

func toBase62(num *big.Int, length int) string {
	base := big.NewInt(62)
	zero := big.NewInt(0)
	result := make([]byte, 0, length)
	temp := new(big.Int).Set(num)
	for temp.Cmp(zero) > 0 && len(result) < length {
		mod := new(big.Int)
		temp.DivMod(temp, base, mod)
		result = append(result, base62Chars[mod.Int64()])
	}
	for len(result) < length {
		result = append(result, base62Chars[0])
	}
	for i, j := 0, len(result)-1; i < j; i, j = i+1, j-1 {
		result[i], result[j] = result[j], result[i]
	}
	return string(result)
}
