package cloud

import (
	"context"

	"gitlab.com/davidxarnold/kubical/pkg/core"
)

// Source is implemented by cloud platforms capable of answering the metadata
// questions kubical asks about the instance it runs on.
type Source interface {
	// Identity resolves the instance's core identity facts. Failure here is
	// fatal to the caller; there is no useful config without an identity.
	Identity(ctx context.Context) (*core.InstanceIdentity, error)

	// InstanceTags returns the instance's tags as a plain key/value map.
	InstanceTags(ctx context.Context, instanceID, region string) (map[string]string, error)

	// HasElasticIP reports whether publicIP is a persistent allocated address
	// rather than an ephemeral auto-assigned one.
	HasElasticIP(ctx context.Context, instanceID, publicIP, region string) (bool, error)
}

// SourceFactory creates a new Source instance.
type SourceFactory func() Source

// Source names accepted by LookupSource.
const (
	SourceAWS = "aws"
)

var sourceRegistry = map[string]SourceFactory{}

// RegisterSource registers a source factory under the given name.
// It is typically called from init() functions in source-specific files.
func RegisterSource(name string, factory SourceFactory) {
	sourceRegistry[name] = factory
}

// LookupSource returns a Source implementation for the given name.
// Unknown names return nil.
func LookupSource(name string) Source {
	if factory, ok := sourceRegistry[name]; ok {
		return factory()
	}
	return nil
}
