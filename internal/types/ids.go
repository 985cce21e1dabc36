package types

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// ID is a custom type that wraps a UUID string.
// It identifies a single orchestration run and is carried on every
// event and log line the run produces.
type ID string

// NewID generates a new UUID v4 and returns it as an ID.
// It will never return an error as uuid.New() uses crypto/rand
// which panics on system-level failures (extremely rare).
func NewID() ID {
	return ID(uuid.New().String())
}

// ParseID parses and validates a string as a UUID, returning an ID.
// It returns an error if the string is not a valid UUID format.
func ParseID(s string) (ID, error) {
	if s == "" {
		return "", fmt.Errorf("ID cannot be empty")
	}

	parsedUUID, err := uuid.Parse(s)
	if err != nil {
		return "", fmt.Errorf("invalid UUID format: %w", err)
	}

	return ID(parsedUUID.String()), nil
}

// Validate checks if the ID is a valid UUID.
// Returns an error if the ID is invalid or empty.
func (id ID) Validate() error {
	if id == "" {
		return fmt.Errorf("ID cannot be empty")
	}

	if _, err := uuid.Parse(string(id)); err != nil {
		return fmt.Errorf("invalid UUID format: %w", err)
	}

	return nil
}

// String returns the string representation of the ID.
func (id ID) String() string {
	return string(id)
}

// IsZero checks if the ID is empty or zero-valued.
func (id ID) IsZero() bool {
	return id == ""
}

// MarshalJSON implements the json.Marshaler interface.
func (id ID) MarshalJSON() ([]byte, error) {
	if id.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(string(id))
}

// UnmarshalJSON implements the json.Unmarshaler interface.
// It deserializes a JSON string into an ID and validates it.
func (id *ID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("failed to unmarshal ID: %w", err)
	}

	if s == "" {
		*id = ""
		return nil
	}

	parsedID, err := ParseID(s)
	if err != nil {
		return err
	}

	*id = parsedID
	return nil
}

// TraceID is a ULID string correlating every attempt of one task execution.
// It is minted exactly once when the execution record is created and is
// never regenerated on retry, so the ledger can group all attempts of a
// task under a single identifier. ULIDs sort lexicographically by creation
// time, which keeps ledger queries ordered without a separate timestamp key.
type TraceID string

// NewTraceID generates a new ULID-backed TraceID for the current time.
func NewTraceID() TraceID {
	return TraceID(ulid.MustNew(ulid.Timestamp(time.Now().UTC()), rand.Reader).String())
}

// ParseTraceID parses and validates a string as a ULID, returning a TraceID.
func ParseTraceID(s string) (TraceID, error) {
	if s == "" {
		return "", fmt.Errorf("trace ID cannot be empty")
	}

	parsed, err := ulid.ParseStrict(s)
	if err != nil {
		return "", fmt.Errorf("invalid ULID format: %w", err)
	}

	return TraceID(parsed.String()), nil
}

// Validate checks if the TraceID is a well-formed ULID.
func (t TraceID) Validate() error {
	if t == "" {
		return fmt.Errorf("trace ID cannot be empty")
	}

	if _, err := ulid.ParseStrict(string(t)); err != nil {
		return fmt.Errorf("invalid ULID format: %w", err)
	}

	return nil
}

// String returns the string representation of the TraceID.
func (t TraceID) String() string {
	return string(t)
}

// IsZero checks if the TraceID is empty.
func (t TraceID) IsZero() bool {
	return t == ""
}

// Time returns the timestamp encoded in the TraceID.
// Returns the zero time if the TraceID is not a valid ULID.
func (t TraceID) Time() time.Time {
	parsed, err := ulid.ParseStrict(string(t))
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(int64(parsed.Time())).UTC()
}
