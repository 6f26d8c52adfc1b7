package hostregistry

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/recira/controller/pkg/executor"
)

var ovsVersionRe = regexp.MustCompile(`ovs-vsctl.*?(\d+\.\d+\.\d+)`)

func (r *Registry) runShort(ctx context.Context, target executor.Target, command string) (executor.Result, error) {
	return r.exec.Execute(ctx, target, command, r.shortTimeout)
}

// probeHostname runs "hostname". probeManagementIP below runs "hostname -I"
// (first field) to detect the local host's management address.
func (r *Registry) probeHostname(ctx context.Context, target executor.Target) (string, error) {
	res, err := r.runShort(ctx, target, "hostname")
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		return "", errExitCode("hostname", res)
	}
	return strings.TrimSpace(res.Stdout), nil
}

func (r *Registry) probeManagementIP(ctx context.Context, target executor.Target) (string, error) {
	res, err := r.runShort(ctx, target, "hostname -I")
	if err != nil {
		return "", err
	}
	out := strings.TrimSpace(res.Stdout)
	if out == "" {
		return "127.0.0.1", nil
	}
	fields := strings.Fields(out)
	return fields[0], nil
}

func (r *Registry) probeOVSVersion(ctx context.Context, target executor.Target) (string, error) {
	res, err := r.runShort(ctx, target, "ovs-vsctl --version")
	if err != nil {
		return "", err
	}
	m := ovsVersionRe.FindStringSubmatch(res.Stdout)
	if m == nil {
		return "unknown", nil
	}
	return m[1], nil
}

// discoverBridges enumerates every bridge known to the target's ovs-vsctl
// and fills in per-bridge details. A failure in list-br is fatal; a failure
// probing an individual bridge's details is not — that bridge is skipped.
func (r *Registry) discoverBridges(ctx context.Context, target executor.Target) ([]Bridge, error) {
	res, err := r.runShort(ctx, target, "ovs-vsctl list-br")
	if err != nil {
		return nil, err
	}
	if res.ExitCode != 0 {
		return nil, errExitCode("ovs-vsctl list-br", res)
	}

	names := splitNonEmptyLines(res.Stdout)
	if len(names) == 0 {
		return nil, nil
	}

	var showOutput string
	if showRes, err := r.runShort(ctx, target, "ovs-vsctl show"); err == nil && showRes.ExitCode == 0 {
		showOutput = showRes.Stdout
	}

	bridges := make([]Bridge, 0, len(names))
	for _, name := range names {
		b, ok := r.bridgeDetails(ctx, target, name, showOutput)
		if ok {
			bridges = append(bridges, b)
		}
	}
	return bridges, nil
}

func (r *Registry) bridgeDetails(ctx context.Context, target executor.Target, name, showOutput string) (Bridge, bool) {
	b := Bridge{Name: name, FailMode: FailModeStandalone}

	dpidRes, err := r.runShort(ctx, target, "ovs-vsctl get bridge "+name+" datapath-id")
	if err != nil || dpidRes.ExitCode != 0 {
		return Bridge{}, false
	}
	dpidHex := strings.Trim(strings.TrimSpace(dpidRes.Stdout), `"`)
	b.DatapathIDHex = dpidHex
	if dpidHex != "" {
		if dec, err := strconv.ParseUint(dpidHex, 16, 64); err == nil {
			b.DatapathIDDecimal = dec
		}
	}

	// Controller not configured is not a failure.
	if ctrlRes, err := r.runShort(ctx, target, "ovs-vsctl get-controller "+name); err == nil && ctrlRes.ExitCode == 0 {
		b.Controller = strings.TrimSpace(ctrlRes.Stdout)
	}

	// Fail mode defaults to standalone when it can't be read.
	if fmRes, err := r.runShort(ctx, target, "ovs-vsctl get-fail-mode "+name); err == nil && fmRes.ExitCode == 0 {
		fm := strings.TrimSpace(fmRes.Stdout)
		switch fm {
		case string(FailModeSecure):
			b.FailMode = FailModeSecure
		case string(FailModeStandalone):
			b.FailMode = FailModeStandalone
		default:
			b.FailMode = FailModeStandalone
		}
	}

	if portsRes, err := r.runShort(ctx, target, "ovs-vsctl list-ports "+name); err == nil && portsRes.ExitCode == 0 {
		b.PortNames = splitNonEmptyLines(portsRes.Stdout)
	}

	if b.Controller != "" && showOutput != "" {
		b.ReachableAdvisory = strings.Contains(showOutput, b.Controller)
	}

	return b, true
}

func splitNonEmptyLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
