package utils

import (
	"fmt"

	"github.com/google/uuid"
)

// GenerateID returns a prefixed opaque identifier, e.g. "conn_7f3b...".
func GenerateID(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, uuid.New().String())
}
