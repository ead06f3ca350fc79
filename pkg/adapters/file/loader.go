package file

import (
	"context"
	"fmt"
	"os"

	"github.com/aretw0/charter/internal/compiler"
	"github.com/aretw0/charter/pkg/domain"
)

// Loader implements ports.FrameworkLoader for a JSON or YAML document on disk.
// The file is read again on every Load, so edits are picked up by the next compile.
type Loader struct {
	Path string
}

// NewLoader creates a loader for the document at path.
func NewLoader(path string) *Loader {
	return &Loader{Path: path}
}

// Load reads and parses the document.
func (l *Loader) Load(ctx context.Context) (*domain.Framework, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(l.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read framework document: %w", err)
	}
	fw, err := compiler.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", l.Path, err)
	}
	return fw, nil
}
