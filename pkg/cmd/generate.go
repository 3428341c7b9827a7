package cmd

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"gitlab.com/davidxarnold/kubical/pkg/cloud"
	"gitlab.com/davidxarnold/kubical/pkg/core"
)

// Generate resolves instance metadata from src and derives the bootstrap
// configuration. Identity resolution failure is fatal; tag, lifecycle, and
// elastic-IP lookups degrade to documented defaults with a logged warning so
// a node with a flaky control-plane connection still gets a usable config.
func Generate(ctx context.Context, src cloud.Source) (*core.BootstrapConfig, error) {
	ident, err := src.Identity(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch instance identity: %w (make sure this host is an EC2 instance with IMDSv2 enabled)", err)
	}

	tags, err := src.InstanceTags(ctx, ident.InstanceID, ident.Region)
	if err != nil {
		log.Warnf("could not fetch instance tags: %v", err)
		tags = map[string]string{}
	}

	elastic := false
	if ident.PublicIPv4 != "" {
		elastic, err = src.HasElasticIP(ctx, ident.InstanceID, ident.PublicIPv4, ident.Region)
		if err != nil {
			log.Warnf("could not determine whether %s is an elastic IP: %v", ident.PublicIPv4, err)
			elastic = false
		}
	}

	return core.BuildConfig(ident, tags, elastic), nil
}
