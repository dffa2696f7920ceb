package mfi

import (
	"fmt"
	"math/rand"
	"strings"
)

// NewSessionID returns a fresh 32 decimal digit session token: eight
// independent zero-padded groups of four. The device treats the value as
// opaque; uniqueness across runs is probabilistic only, no collision
// detection is performed.
func NewSessionID() string {
	var b strings.Builder
	for i := 0; i < 8; i++ {
		fmt.Fprintf(&b, "%04d", rand.Intn(10000))
	}
	return b.String()
}
