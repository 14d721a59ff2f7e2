package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Identity representa uma pessoa cadastrada. Name is the unique key;
// re-enrolling an existing name replaces the whole record.
type Identity struct {
	Name      string    `json:"name"`
	Contact   string    `json:"contact"`
	Embedding Embedding `json:"-"`
	ImageRef  string    `json:"image_ref,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasEmbedding reports whether the record can take part in matching.
func (i *Identity) HasEmbedding() bool {
	return i.Embedding.Valid()
}

// NormalizeName trims surrounding whitespace. Names are compared exactly otherwise.
func NormalizeName(name string) string {
	return strings.TrimSpace(name)
}

// AttendanceEvent is one accepted sighting, appended to the journal and never mutated.
type AttendanceEvent struct {
	ID           uuid.UUID `json:"id"`
	IdentityName string    `json:"identity_name"`
	Contact      string    `json:"contact"`
	Timestamp    time.Time `json:"timestamp"`
}

func NewAttendanceEvent(identity *Identity, at time.Time) *AttendanceEvent {
	return &AttendanceEvent{
		ID:           uuid.New(),
		IdentityName: identity.Name,
		Contact:      identity.Contact,
		Timestamp:    at,
	}
}
