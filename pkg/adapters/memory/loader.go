package memory

import (
	"context"
	"fmt"

	"github.com/aretw0/charter/internal/compiler"
	"github.com/aretw0/charter/pkg/domain"
)

// Loader implements ports.FrameworkLoader over a framework already in memory.
type Loader struct {
	fw *domain.Framework
}

// NewLoader serves a copy of fw on every Load.
func NewLoader(fw *domain.Framework) *Loader {
	return &Loader{fw: fw.Clone()}
}

// NewFromDocument parses a JSON or YAML framework document.
// This keeps tests and embedded hosts free of temporary files.
func NewFromDocument(data []byte) (*Loader, error) {
	fw, err := compiler.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse framework document: %w", err)
	}
	return &Loader{fw: fw}, nil
}

// Load returns the framework.
func (l *Loader) Load(ctx context.Context) (*domain.Framework, error) {
	return l.fw.Clone(), nil
}
