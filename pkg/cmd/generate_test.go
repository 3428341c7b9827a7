package cmd

import (
	"context"
	"errors"
	"strings"
	"testing"

	"gitlab.com/davidxarnold/kubical/pkg/core"
)

// fakeSource is a scriptable cloud.Source implementation for tests.
type fakeSource struct {
	ident    *core.InstanceIdentity
	identErr error

	tags    map[string]string
	tagsErr error

	elastic      bool
	elasticErr   error
	elasticCalls int
}

func (s *fakeSource) Identity(ctx context.Context) (*core.InstanceIdentity, error) {
	return s.ident, s.identErr
}

func (s *fakeSource) InstanceTags(ctx context.Context, instanceID, region string) (map[string]string, error) {
	return s.tags, s.tagsErr
}

func (s *fakeSource) HasElasticIP(ctx context.Context, instanceID, publicIP, region string) (bool, error) {
	s.elasticCalls++
	return s.elastic, s.elasticErr
}

func testIdentity() *core.InstanceIdentity {
	return &core.InstanceIdentity{
		InstanceID:       "i-abc",
		AvailabilityZone: "us-east-1a",
		Region:           "us-east-1",
		InstanceType:     "m5.large",
		Architecture:     "x86_64",
	}
}

func TestGenerateIdentityFailureIsFatal(t *testing.T) {
	src := &fakeSource{identErr: errors.New("imds unreachable")}

	cfg, err := Generate(context.Background(), src)
	if err == nil {
		t.Fatal("expected error when identity resolution fails")
	}
	if cfg != nil {
		t.Fatalf("expected no config on identity failure, got %+v", cfg)
	}
}

func TestGenerateNoPublicIPSkipsElasticLookup(t *testing.T) {
	src := &fakeSource{ident: testIdentity()}

	cfg, err := Generate(context.Background(), src)
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}

	if src.elasticCalls != 0 {
		t.Errorf("expected no elastic IP lookups without a public address, got %d", src.elasticCalls)
	}
	for _, label := range cfg.NodeLabels {
		if strings.HasPrefix(label, "cylzae.com/public-ip") {
			t.Errorf("unexpected public IP label: %q", label)
		}
	}
}

func TestGenerateElasticIP(t *testing.T) {
	ident := testIdentity()
	ident.PublicIPv4 = "3.4.5.6"
	src := &fakeSource{ident: ident, elastic: true}

	cfg, err := Generate(context.Background(), src)
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}

	if src.elasticCalls != 1 {
		t.Errorf("expected one elastic IP lookup, got %d", src.elasticCalls)
	}
	if !hasLabel(cfg, "cylzae.com/public-ip-type=elastic") {
		t.Errorf("expected elastic public-ip-type label, got %v", cfg.NodeLabels)
	}
}

func TestGenerateElasticLookupFailureFallsBackToEphemeral(t *testing.T) {
	ident := testIdentity()
	ident.PublicIPv4 = "3.4.5.6"
	src := &fakeSource{ident: ident, elastic: true, elasticErr: errors.New("access denied")}

	cfg, err := Generate(context.Background(), src)
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}

	if !hasLabel(cfg, "cylzae.com/public-ip-type=ephemeral") {
		t.Errorf("expected ephemeral fallback label, got %v", cfg.NodeLabels)
	}
}

func TestGenerateTagFailureFallsBackToEmpty(t *testing.T) {
	src := &fakeSource{ident: testIdentity(), tagsErr: errors.New("throttled")}

	cfg, err := Generate(context.Background(), src)
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}

	if cfg.NodeTaints != nil {
		t.Errorf("expected no taints from a failed tag lookup, got %v", cfg.NodeTaints)
	}
	for _, label := range cfg.NodeLabels {
		if strings.HasPrefix(label, "cylzae.com/punchkicker-role") {
			t.Errorf("unexpected role label from a failed tag lookup: %q", label)
		}
	}
}

func TestGenerateProviderID(t *testing.T) {
	src := &fakeSource{ident: testIdentity()}

	cfg, err := Generate(context.Background(), src)
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}

	var providerIDs []string
	for _, arg := range cfg.KubeletArgs {
		if strings.HasPrefix(arg, "provider-id=") {
			providerIDs = append(providerIDs, arg)
		}
	}

	if len(providerIDs) != 1 || providerIDs[0] != "provider-id=aws://us-east-1a/i-abc" {
		t.Errorf("expected exactly one provider-id arg aws://us-east-1a/i-abc, got %v", providerIDs)
	}
}

func hasLabel(cfg *core.BootstrapConfig, want string) bool {
	for _, l := range cfg.NodeLabels {
		if l == want {
			return true
		}
	}
	return false
}
