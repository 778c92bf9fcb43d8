package pipeline

import (
	"errors"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-content/internal/parser"
)

// TextCodeParseFailed tags files excluded from the index because they could
// not be read or parsed.
const TextCodeParseFailed = "CONTENT_PARSE_FAILED"

var (
	// ErrIndexRequired is returned when a pipeline is built without an index.
	ErrIndexRequired = errors.New("pipeline: index is required")
	// ErrSourcesRequired is returned when no source is configured.
	ErrSourcesRequired = errors.New("pipeline: at least one source is required")
	// ErrOutsideSources is returned for paths that belong to no source.
	ErrOutsideSources = errors.New("pipeline: path is outside every source")
)

// WrapParseError categorises parse failures for command and HTTP callers.
// Other errors are returned unchanged.
func WrapParseError(err error) error {
	var parseErr *parser.ParseError
	if !errors.As(err, &parseErr) {
		return err
	}
	return goerrors.Wrap(err, goerrors.CategoryValidation, "content file could not be parsed").
		WithTextCode(TextCodeParseFailed)
}
