package types

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

const (
	UUID_PREFIX_REQUEST     = "req"
	UUID_PREFIX_CALCULATION = "calc"
	UUID_PREFIX_BREAKDOWN   = "bd"
)

// GenerateUUID generates a lowercase ULID
func GenerateUUID() string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id := ulid.MustNew(ulid.Timestamp(time.Now().UTC()), entropy)
	return id.String()
}

// GenerateUUIDWithPrefix generates a prefixed ULID, ex req_01HN…
func GenerateUUIDWithPrefix(prefix string) string {
	if prefix == "" {
		return GenerateUUID()
	}
	return fmt.Sprintf("%s_%s", prefix, GenerateUUID())
}
