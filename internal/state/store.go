// Package state persists the sync state document.
//
// The document is always read and written whole. Backends only move bytes;
// Store owns the encoding and the schema version check.
package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Masterminds/semver/v3"

	"github.com/OnlyOnCloud/TallySyncService/internal/core"
)

var (
	// ErrNotFound is returned by a Backend that holds no document yet.
	ErrNotFound = errors.New("state document not found")

	// ErrIncompatibleVersion is returned when a stored document was written
	// by a schema this build cannot read.
	ErrIncompatibleVersion = errors.New("incompatible state document version")
)

// supportedVersions accepts every document of the current major version.
const supportedVersions = "^1"

// Backend stores the encoded document.
type Backend interface {
	// Read returns the stored document or ErrNotFound.
	Read(ctx context.Context) ([]byte, error)
	// Write replaces the stored document atomically.
	Write(ctx context.Context, data []byte) error
	Close() error
}

// Store implements core.StateStore on top of a Backend.
type Store struct {
	backend Backend
	logger  *slog.Logger
}

var _ core.StateStore = (*Store)(nil)

// NewStore wraps a backend. A nil logger uses slog.Default.
func NewStore(backend Backend, logger *slog.Logger) *Store {
	if backend == nil {
		panic("state: backend cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{backend: backend, logger: logger}
}

// Load reads the document. A missing document yields a fresh one.
func (s *Store) Load(ctx context.Context) (*core.StateDocument, error) {
	data, err := s.backend.Read(ctx)
	if errors.Is(err, ErrNotFound) {
		s.logger.Debug("no saved state, starting fresh")
		return core.NewStateDocument(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state: %w", err)
	}

	doc := core.NewStateDocument()
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	if err := checkVersion(doc.Version); err != nil {
		return nil, err
	}
	if doc.Version == "" {
		doc.Version = core.StateDocumentVersion
	}

	for name := range doc.Tables {
		st := doc.Table(name)
		if st.TableName == "" {
			st.TableName = name
		}
	}
	return doc, nil
}

// Save replaces the stored document.
func (s *Store) Save(ctx context.Context, doc *core.StateDocument) error {
	if doc == nil {
		return errors.New("state: nil document")
	}
	if doc.Version == "" {
		doc.Version = core.StateDocumentVersion
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if err := s.backend.Write(ctx, data); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	return nil
}

// Close releases the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

// checkVersion accepts documents of the current major version. Documents
// written before versioning carry no version and are treated as 1.0.0.
func checkVersion(version string) error {
	if version == "" {
		return nil
	}

	constraint, err := semver.NewConstraint(supportedVersions)
	if err != nil {
		return fmt.Errorf("invalid version constraint: %w", err)
	}
	v, err := semver.NewVersion(version)
	if err != nil {
		return fmt.Errorf("%w: %q is not a version", ErrIncompatibleVersion, version)
	}
	if !constraint.Check(v) {
		return fmt.Errorf("%w: %s does not satisfy %s", ErrIncompatibleVersion, version, supportedVersions)
	}
	return nil
}
