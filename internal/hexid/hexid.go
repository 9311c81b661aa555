// Package hexid generates the short random identifiers used for
// floors, sessions, agents and events.
package hexid

import (
	"crypto/rand"
	"encoding/hex"
)

const idBytes = 6

// New returns a 12-character lowercase hex identifier.
func New() string {
	b := make([]byte, idBytes)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand failing means the platform is broken.
		panic("hexid: " + err.Error())
	}
	return hex.EncodeToString(b)
}
