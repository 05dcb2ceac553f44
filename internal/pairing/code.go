package pairing

import (
	"math/rand/v2"
	"strconv"
)

// Codes are drawn from [CodeMin, CodeMax] so they are always exactly six
// digits with no leading zero; neither side needs padding rules.
const (
	CodeLength = 6
	CodeMin    = 100000
	CodeMax    = 999999
)

// GenerateCode returns a uniformly random six-digit code.
//
// The source is math/rand, not crypto/rand. A code is single use and expires
// after ten minutes, but it is still a bearer secret for that window; the
// dashboard rate-limits verification attempts per IP to bound guessing.
func GenerateCode() string {
	return strconv.Itoa(CodeMin + rand.IntN(CodeMax-CodeMin+1))
}

// ValidCode reports whether code has the shape GenerateCode produces.
func ValidCode(code string) bool {
	if len(code) != CodeLength {
		return false
	}
	for _, c := range code {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
