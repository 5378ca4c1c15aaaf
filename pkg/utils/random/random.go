package random

import (
	"crypto/rand"
	"encoding/binary"
	"math/big"
	"time"
)

const letters = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

func Code(length int) string {
	return pickFromSet(letters, length)
}

// Seed returns a crypto-random seed for a math/rand source, falling back
// to the clock if the system source fails.
func Seed() int64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return time.Now().UnixNano()
	}
	return int64(binary.LittleEndian.Uint64(buf[:]))
}

func pickFromSet(set string, length int) string {
	if length <= 0 {
		return ""
	}
	max := big.NewInt(int64(len(set)))
	runes := make([]byte, length)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			runes[i] = set[0]
			continue
		}
		runes[i] = set[n.Int64()]
	}
	return string(runes)
}
