package repository

import (
	"strings"

	"github.com/pgvector/pgvector-go"

	"github.com/saturnino-fabrica-de-software/chamada/internal/domain"
)

// isUniqueViolation checks if the error is a unique constraint violation
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	errMsg := strings.ToLower(err.Error())
	return strings.Contains(errMsg, "23505") ||
		strings.Contains(errMsg, "unique") ||
		strings.Contains(errMsg, "duplicate key")
}

// toVector converts an embedding to the pgvector column type. A missing
// embedding is stored as NULL.
func toVector(e domain.Embedding) *pgvector.Vector {
	if len(e) == 0 {
		return nil
	}
	floats := make([]float32, len(e))
	for i, v := range e {
		floats[i] = float32(v)
	}
	vec := pgvector.NewVector(floats)
	return &vec
}

func fromVector(vec *pgvector.Vector) domain.Embedding {
	if vec == nil || vec.Slice() == nil {
		return nil
	}
	e := make(domain.Embedding, len(vec.Slice()))
	for i, v := range vec.Slice() {
		e[i] = float64(v)
	}
	return e
}
