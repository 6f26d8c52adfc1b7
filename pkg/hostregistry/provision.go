package hostregistry

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/recira/controller/pkg/executor"
)

// ProvisionOptions controls what Provision attempts on a target host.
type ProvisionOptions struct {
	VXLANInterface string // specific interface to tune MTU on, if set
	ConfigureMTU   bool
	Optimize       bool
	MTU            int // defaults to 9000 when zero
}

// ProvisionResult reports, per sub-step, whether it succeeded. Partial
// success is valid: e.g. OVS installed but MTU tuning skipped because no
// interface matched.
type ProvisionResult struct {
	OSFamily        string            `json:"os_family"`
	OVSInstalled    bool              `json:"ovs_installed"`
	OVSVersion      string            `json:"ovs_version"`
	MTUConfigured   bool              `json:"mtu_configured"`
	OptimizeApplied bool              `json:"optimize_applied"`
	Details         map[string]string `json:"details"`
}

var interfaceExcludeRe = regexp.MustCompile(`^lo|^ovs|^docker|^veth`)

// Provision installs and configures Open vSwitch on a remote host.
func (r *Registry) Provision(ctx context.Context, addr, user, secret string, opts ProvisionOptions) (*ProvisionResult, error) {
	if opts.MTU == 0 {
		opts.MTU = 9000
	}
	target := executor.Target{
		Address:     addr,
		Kind:        executor.Remote,
		Credentials: executor.Credentials{User: user, Secret: secret},
	}

	result := &ProvisionResult{Details: make(map[string]string)}

	osRes, err := r.exec.Execute(ctx, target, "cat /etc/os-release", r.shortTimeout)
	if err != nil || osRes.ExitCode != 0 {
		return nil, fmt.Errorf("detecting OS on %s: %w", addr, err)
	}
	family, _ := ParseOSRelease(osRes.Stdout)
	result.OSFamily = family
	if family != "debian" && family != "rhel" {
		return nil, fmt.Errorf("unsupported OS family on %s: %q", addr, family)
	}

	if err := r.installOVS(ctx, target, family, result); err != nil {
		result.Details["ovs_install"] = err.Error()
		return result, nil
	}

	if opts.ConfigureMTU {
		r.configureMTU(ctx, target, opts, result)
	}

	if opts.Optimize {
		r.optimizeOVS(ctx, target, result)
	}

	return result, nil
}

func (r *Registry) installOVS(ctx context.Context, target executor.Target, family string, result *ProvisionResult) error {
	var installCmd, service string
	switch family {
	case "debian":
		installCmd = "DEBIAN_FRONTEND=noninteractive apt-get install -y openvswitch-switch"
		service = "openvswitch-switch"
	case "rhel":
		installCmd = "yum install -y openvswitch"
		service = "openvswitch"
	}

	res, err := r.exec.Execute(ctx, target, installCmd, r.installTimeout)
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("installing OVS: %s", res.Stderr)
	}

	r.exec.Execute(ctx, target, "systemctl enable "+service, r.shortTimeout)
	r.exec.Execute(ctx, target, "systemctl start "+service, r.shortTimeout)

	version, err := r.probeOVSVersion(ctx, target)
	if err != nil || version == "" || version == "unknown" {
		return fmt.Errorf("OVS installation could not be verified")
	}
	result.OVSInstalled = true
	result.OVSVersion = version
	return nil
}

func (r *Registry) configureMTU(ctx context.Context, target executor.Target, opts ProvisionOptions, result *ProvisionResult) {
	if opts.VXLANInterface != "" {
		res, err := r.exec.Execute(ctx, target,
			fmt.Sprintf("ip link set %s mtu %d", opts.VXLANInterface, opts.MTU), r.shortTimeout)
		if err == nil && res.ExitCode == 0 {
			result.MTUConfigured = true
			result.Details["mtu"] = opts.VXLANInterface
		} else {
			result.Details["mtu"] = "failed on " + opts.VXLANInterface
		}
		return
	}

	res, err := r.exec.Execute(ctx, target,
		`ip -o link show | awk -F': ' '{print $2}'`, r.shortTimeout)
	if err != nil || res.ExitCode != 0 {
		result.Details["mtu"] = "could not list interfaces"
		return
	}

	var configured []string
	for _, iface := range splitNonEmptyLines(res.Stdout) {
		if interfaceExcludeRe.MatchString(iface) {
			continue
		}
		mtuRes, err := r.exec.Execute(ctx, target, fmt.Sprintf("ip link set %s mtu %d", iface, opts.MTU), r.shortTimeout)
		if err == nil && mtuRes.ExitCode == 0 {
			configured = append(configured, iface)
		}
	}
	result.MTUConfigured = len(configured) > 0
	result.Details["mtu"] = strings.Join(configured, ",")
}

func (r *Registry) optimizeOVS(ctx context.Context, target executor.Target, result *ProvisionResult) {
	settings := []struct{ key, value string }{
		{"other-config:max-idle", "30000"},
		{"other-config:flow-eviction-threshold", "10000"},
	}

	applied := 0
	for _, s := range settings {
		cmd := fmt.Sprintf("ovs-vsctl set Open_vSwitch . %s=%s", s.key, s.value)
		res, err := r.exec.Execute(ctx, target, cmd, r.shortTimeout)
		if err == nil && res.ExitCode == 0 {
			applied++
		}
	}
	result.OptimizeApplied = applied == len(settings)
	result.Details["optimize"] = fmt.Sprintf("%d/%d settings applied", applied, len(settings))
}
