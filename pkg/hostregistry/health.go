package hostregistry

import (
	"context"
	"strings"

	"github.com/recira/controller/pkg/executor"
)

// HealthReport is the result of a stateless host health probe. It does not
// require prior registration and does not mutate the registry.
type HealthReport struct {
	Reachable    bool   `json:"reachable"`
	OSFamily     string `json:"os_family"`
	OSVersion    string `json:"os_version"`
	OVSInstalled bool   `json:"ovs_installed"`
	OVSVersion   string `json:"ovs_version"`
	OVSActive    bool   `json:"ovs_active"`
}

// Health probes a host's OVS/OS state directly, without requiring it to be
// registered.
func (r *Registry) Health(ctx context.Context, addr, user, secret string) (*HealthReport, error) {
	target := executor.Target{
		Address:     addr,
		Kind:        executor.Remote,
		Credentials: executor.Credentials{User: user, Secret: secret},
	}

	report := &HealthReport{}

	if res, err := r.runShort(ctx, target, "echo ping"); err != nil || res.ExitCode != 0 {
		return report, nil
	}
	report.Reachable = true

	if res, err := r.runShort(ctx, target, "cat /etc/os-release"); err == nil && res.ExitCode == 0 {
		family, version := ParseOSRelease(res.Stdout)
		report.OSFamily = family
		report.OSVersion = version
	}

	if version, err := r.probeOVSVersion(ctx, target); err == nil && version != "" && version != "unknown" {
		report.OVSInstalled = true
		report.OVSVersion = version
	}

	if res, err := r.runShort(ctx, target,
		"systemctl is-active openvswitch || systemctl is-active openvswitch-switch"); err == nil {
		report.OVSActive = res.ExitCode == 0 && strings.Contains(res.Stdout, "active")
	}

	return report, nil
}

// ParseOSRelease extracts ID and VERSION_ID from /etc/os-release content,
// mapped to a coarse family name (debian-derived vs rhel-derived). Shared
// by health probing, provisioning, and the DHCP manager's dnsmasq install.
func ParseOSRelease(content string) (family, version string) {
	var id, versionID string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if v, ok := strings.CutPrefix(line, "ID="); ok {
			id = strings.Trim(v, `"`)
		}
		if v, ok := strings.CutPrefix(line, "VERSION_ID="); ok {
			versionID = strings.Trim(v, `"`)
		}
	}

	switch strings.ToLower(id) {
	case "ubuntu", "debian":
		family = "debian"
	case "centos", "rhel", "rocky", "almalinux", "fedora":
		family = "rhel"
	default:
		family = id
	}
	return family, versionID
}
