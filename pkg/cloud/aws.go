package cloud

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/ec2/imds"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/smithy-go"
	log "github.com/sirupsen/logrus"

	"gitlab.com/davidxarnold/kubical/pkg/core"
)

// awsSource implements Source against the EC2 instance metadata service and
// the EC2 API.
type awsSource struct{}

// Identity resolves the instance identity document via IMDS. The public IPv4
// and lifecycle lookups are best-effort: instances without a public address
// 404 on public-ipv4, and only spot instances expose instance-life-cycle.
func (s *awsSource) Identity(ctx context.Context) (*core.InstanceIdentity, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := imds.NewFromConfig(cfg)
	doc, err := client.GetInstanceIdentityDocument(ctx, &imds.GetInstanceIdentityDocumentInput{})
	if err != nil {
		return nil, fmt.Errorf("fetch instance identity document: %w", err)
	}

	ident := &core.InstanceIdentity{
		InstanceID:       doc.InstanceID,
		AvailabilityZone: doc.AvailabilityZone,
		Region:           doc.Region,
		InstanceType:     doc.InstanceType,
		Architecture:     doc.Architecture,
	}

	if ip, err := metadataPath(ctx, client, "public-ipv4"); err == nil {
		ident.PublicIPv4 = ip
	}

	if lifecycle, err := metadataPath(ctx, client, "instance-life-cycle"); err == nil {
		ident.Lifecycle = lifecycle
	} else {
		log.Debugf("instance-life-cycle not available, assuming on-demand: %v", err)
	}

	return ident, nil
}

// InstanceTags fetches the instance's tags through DescribeInstances.
func (s *awsSource) InstanceTags(ctx context.Context, instanceID, region string) (map[string]string, error) {
	svc, err := ec2Client(ctx, region)
	if err != nil {
		return nil, err
	}

	instance, err := describeInstance(ctx, svc, instanceID)
	if err != nil {
		return nil, err
	}

	tags := make(map[string]string, len(instance.Tags))
	for _, tag := range instance.Tags {
		if tag.Key == nil || tag.Value == nil {
			continue
		}
		tags[*tag.Key] = *tag.Value
	}

	return tags, nil
}

// HasElasticIP reports whether publicIP is an Elastic IP. It first asks
// DescribeAddresses directly; if the address is not a known allocation it
// falls back to the instance's network interface associations, where an
// allocation ID identifies an Elastic IP.
func (s *awsSource) HasElasticIP(ctx context.Context, instanceID, publicIP, region string) (bool, error) {
	svc, err := ec2Client(ctx, region)
	if err != nil {
		return false, err
	}

	addrs, err := svc.DescribeAddresses(ctx, &ec2.DescribeAddressesInput{
		PublicIps: []string{publicIP},
	})
	if err == nil && len(addrs.Addresses) > 0 {
		return true, nil
	}
	if err != nil {
		var ae smithy.APIError
		// InvalidAddress.NotFound just means publicIP is not an allocated
		// address; anything else is worth a debug line before the fallback.
		if errors.As(err, &ae) && ae.ErrorCode() != "InvalidAddress.NotFound" {
			log.Debugf("describe addresses for %s: %s", publicIP, ae.ErrorCode())
		}
	}

	ifaces, err := svc.DescribeNetworkInterfaces(ctx, &ec2.DescribeNetworkInterfacesInput{
		Filters: []types.Filter{{
			Name:   aws.String("attachment.instance-id"),
			Values: []string{instanceID},
		}},
	})
	if err != nil {
		var ae smithy.APIError
		if errors.As(err, &ae) {
			return false, fmt.Errorf("describe network interfaces for %s: %s", instanceID, ae.ErrorCode())
		}
		return false, fmt.Errorf("describe network interfaces for %s: %w", instanceID, err)
	}

	for i := range ifaces.NetworkInterfaces {
		assoc := ifaces.NetworkInterfaces[i].Association
		if assoc == nil || aws.ToString(assoc.PublicIp) != publicIP {
			continue
		}
		return aws.ToString(assoc.AllocationId) != "", nil
	}

	return false, nil
}

func ec2Client(ctx context.Context, region string) (*ec2.Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	return ec2.NewFromConfig(cfg), nil
}

func describeInstance(ctx context.Context, svc *ec2.Client, instanceID string) (*types.Instance, error) {
	result, err := svc.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
		InstanceIds: []string{instanceID},
	})
	if err != nil {
		var ae smithy.APIError
		if errors.As(err, &ae) {
			return nil, fmt.Errorf("describe instance %s: %s", instanceID, ae.ErrorCode())
		}
		return nil, fmt.Errorf("describe instance %s: %w", instanceID, err)
	}

	if len(result.Reservations) == 0 || len(result.Reservations[0].Instances) == 0 {
		return nil, fmt.Errorf("no instance information found for %s", instanceID)
	}

	return &result.Reservations[0].Instances[0], nil
}

func metadataPath(ctx context.Context, client *imds.Client, path string) (string, error) {
	out, err := client.GetMetadata(ctx, &imds.GetMetadataInput{Path: path})
	if err != nil {
		return "", err
	}
	defer func() {
		_ = out.Content.Close()
	}()

	b, err := io.ReadAll(out.Content)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

// nolint:gochecknoinits // registration-style init keeps source wiring local to this file.
func init() {
	RegisterSource(SourceAWS, func() Source { return &awsSource{} })
}
