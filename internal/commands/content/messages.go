package contentcmd

import (
	"path/filepath"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const (
	buildIndexMessageType  = "content.index.build"
	processFileMessageType = "content.file.process"
	removeFileMessageType  = "content.file.remove"
)

// BuildIndexCommand triggers a full walk of every configured source.
type BuildIndexCommand struct {
	// Reason is recorded with the build logs (startup, manual, schedule).
	Reason string `json:"reason,omitempty"`
}

// Type implements command.Message.
func (BuildIndexCommand) Type() string { return buildIndexMessageType }

// Validate implements command.Message.
func (BuildIndexCommand) Validate() error { return nil }

// ProcessFileCommand re-parses a single file and merges it into the index.
type ProcessFileCommand struct {
	// Path is the absolute filesystem path of the changed file.
	Path string `json:"path"`
}

// Type implements command.Message.
func (ProcessFileCommand) Type() string { return processFileMessageType }

// Validate ensures an absolute path is supplied.
func (cmd ProcessFileCommand) Validate() error {
	return validation.ValidateStruct(&cmd,
		validation.Field(&cmd.Path, validation.Required, validation.By(absolutePath("content.file.process.path_absolute"))),
	)
}

// RemoveFileCommand drops the documents produced by a file or directory.
type RemoveFileCommand struct {
	Path string `json:"path"`
}

// Type implements command.Message.
func (RemoveFileCommand) Type() string { return removeFileMessageType }

// Validate ensures an absolute path is supplied.
func (cmd RemoveFileCommand) Validate() error {
	return validation.ValidateStruct(&cmd,
		validation.Field(&cmd.Path, validation.Required, validation.By(absolutePath("content.file.remove.path_absolute"))),
	)
}

func absolutePath(code string) validation.RuleFunc {
	return func(value any) error {
		path, _ := value.(string)
		if strings.TrimSpace(path) == "" {
			return nil
		}
		if !filepath.IsAbs(path) {
			return validation.NewError(code, "path must be absolute")
		}
		return nil
	}
}
