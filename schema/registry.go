package schema

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/Masterminds/semver/v3"
	"github.com/glimte/orderflow/contracts"
)

var (
	// ErrSchemaNotFound is returned when no schema satisfies a lookup
	ErrSchemaNotFound = errors.New("schema not found")
	// ErrVersionExists is returned when a version is registered twice
	ErrVersionExists = errors.New("schema version already registered")
)

type versionedSchema struct {
	version *semver.Version
	schema  Schema
}

// Registry holds schemas per (source, detailType) pair
type Registry struct {
	mu      sync.RWMutex
	schemas map[string][]versionedSchema
	strict  bool
	logger  *slog.Logger
}

// RegistryOption configures the Registry
type RegistryOption func(*Registry)

// WithStrictMode rejects details whose pair has no registered schema
func WithStrictMode(strict bool) RegistryOption {
	return func(r *Registry) {
		r.strict = strict
	}
}

// WithRegistryLogger sets the logger
func WithRegistryLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = logger
	}
}

// NewRegistry creates an empty registry
func NewRegistry(options ...RegistryOption) *Registry {
	r := &Registry{
		schemas: make(map[string][]versionedSchema),
		logger:  slog.Default(),
	}

	for _, opt := range options {
		opt(r)
	}

	return r
}

// Register adds a schema version for a pair. Registering a version that
// already exists fails with ErrVersionExists.
func (r *Registry) Register(source, detailType, version string, schema Schema) error {
	return r.add(source, detailType, version, schema, false)
}

// Replace adds a schema version for a pair, superseding an existing schema
// with the same version
func (r *Registry) Replace(source, detailType, version string, schema Schema) error {
	return r.add(source, detailType, version, schema, true)
}

func (r *Registry) add(source, detailType, version string, schema Schema, replace bool) error {
	if source == "" || detailType == "" {
		return fmt.Errorf("source and detail type cannot be empty")
	}
	if schema == nil {
		return fmt.Errorf("schema cannot be nil")
	}

	v, err := semver.NewVersion(version)
	if err != nil {
		return fmt.Errorf("invalid schema version %q: %w", version, err)
	}

	key := contracts.EventKey(source, detailType)

	r.mu.Lock()
	defer r.mu.Unlock()

	for i, existing := range r.schemas[key] {
		if !existing.version.Equal(v) {
			continue
		}
		if !replace {
			return fmt.Errorf("%w: %s %s", ErrVersionExists, key, v)
		}
		r.schemas[key][i].schema = schema
		r.logger.Debug("replaced schema",
			"source", source,
			"detailType", detailType,
			"version", v.String(),
			"kind", schema.Kind(),
		)
		return nil
	}

	versions := append(r.schemas[key], versionedSchema{version: v, schema: schema})
	sort.Slice(versions, func(i, j int) bool {
		return versions[i].version.LessThan(versions[j].version)
	})
	r.schemas[key] = versions

	r.logger.Debug("registered schema",
		"source", source,
		"detailType", detailType,
		"version", v.String(),
		"kind", schema.Kind(),
	)

	return nil
}

// Lookup returns the highest version satisfying constraint. An empty
// constraint selects the latest version.
func (r *Registry) Lookup(source, detailType, constraint string) (Schema, *semver.Version, error) {
	var c *semver.Constraints
	if constraint != "" {
		var err error
		c, err = semver.NewConstraint(constraint)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid version constraint %q: %w", constraint, err)
		}
	}

	key := contracts.EventKey(source, detailType)

	r.mu.RLock()
	defer r.mu.RUnlock()

	versions := r.schemas[key]
	for i := len(versions) - 1; i >= 0; i-- {
		if c == nil || c.Check(versions[i].version) {
			return versions[i].schema, versions[i].version, nil
		}
	}

	if constraint == "" {
		return nil, nil, fmt.Errorf("%w for %s", ErrSchemaNotFound, key)
	}
	return nil, nil, fmt.Errorf("%w for %s matching %s", ErrSchemaNotFound, key, constraint)
}

// Versions lists the registered versions of a pair in ascending order
func (r *Registry) Versions(source, detailType string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	versions := r.schemas[contracts.EventKey(source, detailType)]
	out := make([]string, len(versions))
	for i, v := range versions {
		out[i] = v.version.String()
	}
	return out
}

// Validate checks detail against the latest schema of its pair. It
// implements messaging.DetailValidator.
func (r *Registry) Validate(source, detailType string, detail contracts.Detail) error {
	return r.ValidateVersion(source, detailType, "", detail)
}

// ValidateVersion checks detail against the highest schema version
// satisfying constraint
func (r *Registry) ValidateVersion(source, detailType, constraint string, detail contracts.Detail) error {
	schema, version, err := r.Lookup(source, detailType, constraint)
	if err != nil {
		if errors.Is(err, ErrSchemaNotFound) && !r.strict {
			return nil
		}
		return &contracts.ValidationError{Field: "detail", Reason: err.Error()}
	}

	if detail == nil {
		detail = contracts.Detail{}
	}
	value, err := normalize(detail)
	if err != nil {
		return &contracts.ValidationError{Field: "detail", Reason: fmt.Sprintf("is not JSON: %v", err)}
	}

	if err := schema.Validate(value); err != nil {
		r.logger.Debug("detail failed schema validation",
			"source", source,
			"detailType", detailType,
			"version", version.String(),
			"error", err,
		)
		return &contracts.ValidationError{
			Field:  "detail",
			Reason: fmt.Sprintf("does not match %s schema %s: %v", contracts.EventKey(source, detailType), version, err),
		}
	}

	return nil
}
