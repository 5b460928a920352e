package attendance

import (
	"math/rand"
	"strconv"
)

// GenerateCode returns a 5-digit attendance code drawn uniformly from
// [10000, 99999]. Codes are only required to be unique among currently
// active sessions of one class, which activation enforces.
func GenerateCode() string {
	return strconv.Itoa(10000 + rand.Intn(90000))
}
