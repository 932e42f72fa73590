package cache

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Key scheme shared by every backend.
const (
	KeyPrefix     = "tasks:"
	FindAllPrefix = KeyPrefix + "findAll"
	StatsKey      = KeyPrefix + "stats"
)

// FindOneKey is the point-lookup key for a single task.
func FindOneKey(id uuid.UUID) string {
	return KeyPrefix + "findOne:" + id.String()
}

// FindAllKey is the list key for a normalised filter. filter must be a value
// whose JSON encoding is deterministic, such as a struct.
func FindAllKey(filter any) (string, error) {
	b, err := json.Marshal(filter)
	if err != nil {
		return "", fmt.Errorf("encode list filter: %w", err)
	}
	return FindAllPrefix + ":" + string(b), nil
}
