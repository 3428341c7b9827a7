package core

import (
	"sort"
	"strings"

	"gitlab.com/davidxarnold/kubical/pkg/util"
)

const (
	// CapacitySpot and CapacityOnDemand are the values of the
	// karpenter.sh/capacity-type node label.
	CapacitySpot     = "spot"
	CapacityOnDemand = "on-demand"

	roleTag     = "punchkicker-role"
	labelPrefix = "label/"
	taintPrefix = "taint/"
)

// archNames maps raw machine architectures onto Kubernetes arch label values.
var archNames = map[string]string{
	"x86_64":  "amd64",
	"aarch64": "arm64",
	"armv7l":  "arm",
}

// NormalizeArch returns the Kubernetes name for a raw machine architecture.
// Unrecognized values pass through unchanged.
func NormalizeArch(machine string) string {
	if arch, ok := archNames[machine]; ok {
		return arch
	}
	return machine
}

// SplitInstanceType splits an EC2 instance type into family and size.
// Anything that is not exactly "family.size" yields ("unknown") as the size.
func SplitInstanceType(instanceType string) (family, size string) {
	parts := strings.Split(instanceType, ".")
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return instanceType, "unknown"
}

// ClassifyCapacity maps an instance lifecycle onto a capacity type. Only an
// explicit "spot" classifies as spot; absent or unrecognized lifecycles are
// on-demand, so a failed lifecycle lookup needs no special handling upstream.
func ClassifyCapacity(lifecycle string) string {
	if lifecycle == CapacitySpot {
		return CapacitySpot
	}
	return CapacityOnDemand
}

// BuildConfig derives the k3s bootstrap configuration from the instance
// identity, its tags, and whether its public IP is an Elastic IP. It is a
// pure function of its inputs.
//
// Tag keys are normalized by replacing "::" with "/". Keys under label/
// become node labels, keys under taint/ become node taints, and everything
// else is ignored.
func BuildConfig(ident *InstanceIdentity, tags map[string]string, elasticIP bool) *BootstrapConfig {
	family, size := SplitInstanceType(ident.InstanceType)

	cfg := &BootstrapConfig{
		ProtectKernelDefaults: true,
		SecretsEncryption:     true,
		KubeAPIServerArgs: []string{
			"admission-control-config-file=/var/lib/rancher/k3s/server/psa.yaml",
			"audit-log-path=/var/lib/rancher/k3s/server/logs/audit.log",
			"audit-policy-file=/var/lib/rancher/k3s/server/audit.yaml",
			"audit-log-maxage=30",
			"audit-log-maxbackup=10",
			"audit-log-maxsize=100",
		},
		KubeletArgs: []string{
			"provider-id=" + util.FormatProviderID(ident.AvailabilityZone, ident.InstanceID),
			"max-pods=110",
			"kube-reserved=cpu=100m,memory=500Mi",
			"system-reserved=cpu=100m,memory=500Mi",
			"eviction-hard=memory.available<100Mi,nodefs.available<10%",
		},
		NodeLabels: []string{
			"topology.kubernetes.io/region=" + ident.Region,
			"topology.kubernetes.io/zone=" + ident.AvailabilityZone,
			"node.kubernetes.io/instance-type=" + ident.InstanceType,
			"node.kubernetes.io/instance-family=" + family,
			"node.kubernetes.io/instance-size=" + size,
			"karpenter.sh/capacity-type=" + ClassifyCapacity(ident.Lifecycle),
			"kubernetes.io/arch=" + NormalizeArch(ident.Architecture),
			"kubernetes.io/os=linux",
			// Deprecated label names kept for consumers that still select on them.
			"failure-domain.beta.kubernetes.io/region=" + ident.Region,
			"failure-domain.beta.kubernetes.io/zone=" + ident.AvailabilityZone,
			"beta.kubernetes.io/instance-type=" + ident.InstanceType,
		},
	}

	if ident.PublicIPv4 != "" {
		ipType := "ephemeral"
		if elasticIP {
			ipType = "elastic"
		}
		cfg.NodeLabels = append(cfg.NodeLabels,
			"cylzae.com/public-ip="+ident.PublicIPv4,
			"cylzae.com/public-ip-type="+ipType,
		)
	}

	if role, ok := tags[roleTag]; ok {
		cfg.NodeLabels = append(cfg.NodeLabels, "cylzae.com/punchkicker-role="+role)
	}

	var taints []string
	for key, value := range tags {
		key = strings.ReplaceAll(key, "::", "/")
		switch {
		case strings.HasPrefix(key, labelPrefix):
			cfg.NodeLabels = append(cfg.NodeLabels, strings.TrimPrefix(key, labelPrefix)+"="+value)
		case strings.HasPrefix(key, taintPrefix):
			taints = append(taints, strings.TrimPrefix(key, taintPrefix)+"="+value)
		}
	}
	if len(taints) > 0 {
		cfg.NodeTaints = taints
	}

	sort.Strings(cfg.KubeAPIServerArgs)
	sort.Strings(cfg.KubeletArgs)
	sort.Strings(cfg.NodeLabels)
	sort.Strings(cfg.NodeTaints)

	return cfg
}
