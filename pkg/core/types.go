/*
Copyright 2025 David Arnold
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at
    http://www.apache.org/licenses/LICENSE-2.0
Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package core contains the derivation logic that maps instance identity
// facts and tags onto a k3s bootstrap configuration, independent of any
// particular cloud client or CLI.
package core

// InstanceIdentity is an immutable snapshot of the facts kubical needs about
// the instance it is running on. Architecture carries the raw machine value
// (e.g. "x86_64"); normalization happens during derivation.
type InstanceIdentity struct {
	InstanceID       string
	AvailabilityZone string
	Region           string
	InstanceType     string // "family.size", e.g. "m5.large"
	PublicIPv4       string // empty when the instance has no public address
	Architecture     string
	Lifecycle        string // "spot" for spot instances, otherwise empty
}

// BootstrapConfig is the k3s config.yaml document kubical emits. Field order
// matches the document the node agent expects; list fields are sorted before
// emission so repeated runs produce identical output.
type BootstrapConfig struct {
	ProtectKernelDefaults bool     `yaml:"protect-kernel-defaults"`
	SecretsEncryption     bool     `yaml:"secrets-encryption"`
	KubeAPIServerArgs     []string `yaml:"kube-apiserver-arg"`
	KubeletArgs           []string `yaml:"kubelet-arg"`
	NodeLabels            []string `yaml:"node-label"`
	NodeTaints            []string `yaml:"node-taint,omitempty"`
}
