package query

import (
	"encoding/json"
	"errors"
	"fmt"

	goerrors "github.com/goliatone/go-errors"
)

// TextCodeMalformed tags malformed query errors at the command and HTTP
// boundaries.
const TextCodeMalformed = "CONTENT_QUERY_MALFORMED"

// ErrMalformed is matched by every *MalformedQueryError.
var ErrMalformed = errors.New("query: malformed descriptor")

// MalformedQueryError rejects a descriptor before it touches the index.
// Descriptor holds the offending input as received.
type MalformedQueryError struct {
	Descriptor json.RawMessage
	Reason     string
	Issues     []Issue
}

// Issue locates one schema violation inside the descriptor.
type Issue struct {
	Location string `json:"location"`
	Message  string `json:"message"`
}

func (e *MalformedQueryError) Error() string {
	return fmt.Sprintf("malformed query: %s", e.Reason)
}

func (e *MalformedQueryError) Unwrap() error { return ErrMalformed }

// Wrap categorises err with go-errors when it is a malformed query error.
// Other errors are returned unchanged.
func Wrap(err error) error {
	var malformed *MalformedQueryError
	if !errors.As(err, &malformed) {
		return err
	}
	return goerrors.Wrap(err, goerrors.CategoryValidation, malformed.Reason).WithTextCode(TextCodeMalformed)
}

func malformed(raw []byte, format string, args ...any) *MalformedQueryError {
	return &MalformedQueryError{Descriptor: cloneRaw(raw), Reason: fmt.Sprintf(format, args...)}
}

func cloneRaw(raw []byte) json.RawMessage {
	if len(raw) == 0 {
		return nil
	}
	if !json.Valid(raw) {
		quoted, _ := json.Marshal(string(raw))
		return quoted
	}
	return append(json.RawMessage(nil), raw...)
}
