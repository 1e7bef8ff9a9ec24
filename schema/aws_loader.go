package schema

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/schemas"
)

// DescribeSchemaAPI is the part of the schemas client the loader uses
type DescribeSchemaAPI interface {
	DescribeSchema(ctx context.Context, params *schemas.DescribeSchemaInput, optFns ...func(*schemas.Options)) (*schemas.DescribeSchemaOutput, error)
}

// RemoteSchema names a registry schema and the pair it validates
type RemoteSchema struct {
	Source     string
	DetailType string
	SchemaName string
	// SchemaVersion is empty for the latest version
	SchemaVersion string
	// EventRef names the component holding the event in OpenApi3 schemas
	EventRef string
}

// AWSLoader fetches schemas from an EventBridge Schema Registry
type AWSLoader struct {
	api          DescribeSchemaAPI
	registryName string
	logger       *slog.Logger
}

// LoaderOption configures the AWSLoader
type LoaderOption func(*AWSLoader)

// WithLoaderLogger sets the logger
func WithLoaderLogger(logger *slog.Logger) LoaderOption {
	return func(l *AWSLoader) {
		l.logger = logger
	}
}

// NewAWSLoader creates a loader for registryName
func NewAWSLoader(api DescribeSchemaAPI, registryName string, options ...LoaderOption) *AWSLoader {
	l := &AWSLoader{
		api:          api,
		registryName: registryName,
		logger:       slog.Default(),
	}

	for _, opt := range options {
		opt(l)
	}

	return l
}

// Fetch downloads and compiles one schema. The returned version is the
// registry's version number.
func (l *AWSLoader) Fetch(ctx context.Context, remote RemoteSchema) (Schema, string, error) {
	input := &schemas.DescribeSchemaInput{
		RegistryName: aws.String(l.registryName),
		SchemaName:   aws.String(remote.SchemaName),
	}
	if remote.SchemaVersion != "" {
		input.SchemaVersion = aws.String(remote.SchemaVersion)
	}

	out, err := l.api.DescribeSchema(ctx, input)
	if err != nil {
		return nil, "", fmt.Errorf("failed to get the schema %s: %w", remote.SchemaName, err)
	}
	if out.Content == nil {
		return nil, "", fmt.Errorf("schema %s has no content", remote.SchemaName)
	}

	s, err := Compile(Kind(aws.ToString(out.Type)), aws.ToString(out.Content), remote.EventRef)
	if err != nil {
		return nil, "", fmt.Errorf("schema %s: %w", remote.SchemaName, err)
	}

	return s, aws.ToString(out.SchemaVersion), nil
}

// LoadInto fetches every remote schema and registers it under its pair.
// Registry version numbers map onto semantic versions ("2" is 2.0.0), and a
// remote schema supersedes a local one with the same version.
func (l *AWSLoader) LoadInto(ctx context.Context, r *Registry, remotes ...RemoteSchema) error {
	for _, remote := range remotes {
		s, version, err := l.Fetch(ctx, remote)
		if err != nil {
			return err
		}

		if err := r.Replace(remote.Source, remote.DetailType, version, s); err != nil {
			return fmt.Errorf("failed to register schema %s: %w", remote.SchemaName, err)
		}

		l.logger.Info("loaded registry schema",
			"registry", l.registryName,
			"schemaName", remote.SchemaName,
			"version", version,
			"source", remote.Source,
			"detailType", remote.DetailType,
		)
	}
	return nil
}

// DiscoveredSchemas names the order event schemas the way EventBridge
// schema discovery does, "<source>@<detailType>". Discovered schemas are
// OpenApi3 documents whose detail component is named after the detail type.
func DiscoveredSchemas() []RemoteSchema {
	remotes := make([]RemoteSchema, 0, len(builtinSchemas))
	for _, b := range builtinSchemas {
		ref := b.eventRef
		if ref == "" {
			ref = b.detailType
		}
		remotes = append(remotes, RemoteSchema{
			Source:     b.source,
			DetailType: b.detailType,
			SchemaName: b.source + "@" + b.detailType,
			EventRef:   ref,
		})
	}
	return remotes
}
