package tunnel

import (
	"context"
	"strconv"
	"strings"

	"github.com/recira/controller/pkg/hostregistry"
	"github.com/recira/controller/pkg/util"
)

type vxlanPort struct {
	bridge   string
	port     string
	vni      int
	remoteIP string
}

// parseVXLANPorts scans the block-structured output of "ovs-vsctl show" for
// vxlan-type ports and their remote_ip/key options.
func parseVXLANPorts(show string) []vxlanPort {
	var ports []vxlanPort

	var bridge, port, typ string
	options := map[string]string{}

	flush := func() {
		if port == "" || typ != "vxlan" {
			return
		}
		remoteIP, hasIP := options["remote_ip"]
		keyStr, hasKey := options["key"]
		if !hasIP || !hasKey {
			return
		}
		v, err := strconv.Atoi(strings.Trim(keyStr, `"`))
		if err != nil || v == 0 {
			return
		}
		ports = append(ports, vxlanPort{bridge: bridge, port: port, vni: v, remoteIP: strings.Trim(remoteIP, `"`)})
	}

	for _, raw := range strings.Split(show, "\n") {
		line := strings.TrimSpace(raw)
		switch {
		case strings.HasPrefix(line, "Bridge "):
			bridge = strings.Trim(strings.TrimPrefix(line, "Bridge "), `"`)
		case strings.HasPrefix(line, "Port "):
			flush()
			port = strings.Trim(strings.TrimPrefix(line, "Port "), `"`)
			typ = ""
			options = map[string]string{}
		case strings.HasPrefix(line, "type: "):
			typ = strings.TrimPrefix(line, "type: ")
		case strings.HasPrefix(line, "options: "):
			body := strings.TrimPrefix(line, "options: ")
			body = strings.TrimPrefix(body, "{")
			body = strings.TrimSuffix(body, "}")
			for _, kv := range strings.Split(body, ", ") {
				if k, v, ok := strings.Cut(kv, "="); ok {
					options[k] = v
				}
			}
		}
	}
	flush()

	return ports
}

// Discover enumerates existing VXLAN ports on every online host and
// reconciles them into tunnel records, deduping bidirectional pairs and
// advancing the shared VNI allocator past every observed VNI.
func (m *Manager) Discover(ctx context.Context) (int, error) {
	hosts := m.registry.ListHosts()
	switches := m.registry.ListSwitches()

	switchByHostBridge := make(map[[2]string]int)
	for _, sw := range switches {
		switchByHostBridge[[2]string{sw.HostAddr, sw.Name}] = sw.ID
	}

	seen := make(map[[3]string]bool)
	discovered := 0

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, h := range hosts {
		if h.Status != hostregistry.StatusOnline {
			continue
		}
		overlayIP := hostOverlay(h)

		res, err := m.exec.Execute(ctx, hostregistry.Target(h), "ovs-vsctl show", m.timeout)
		if err != nil || res.ExitCode != 0 {
			continue
		}

		for _, vp := range parseVXLANPorts(res.Stdout) {
			lo, hi := overlayIP, vp.remoteIP
			if hi < lo {
				lo, hi = hi, lo
			}
			key := [3]string{strconv.Itoa(vp.vni), lo, hi}
			if seen[key] {
				continue
			}
			seen[key] = true

			peer, ok := m.registry.FindHostByAddr(vp.remoteIP)
			if !ok {
				continue
			}

			srcSwitchID, ok := switchByHostBridge[[2]string{overlayIP, vp.bridge}]
			if !ok {
				continue
			}
			dstSwitchID, ok := findAnySwitch(switches, peer.ID)
			if !ok {
				continue
			}

			t := &Tunnel{
				ID:           m.nextID,
				SrcSwitchID:  srcSwitchID,
				DstSwitchID:  dstSwitchID,
				VNI:          vp.vni,
				SrcOverlayIP: overlayIP,
				DstOverlayIP: vp.remoteIP,
				SrcPortName:  vp.port,
				DstPortName:  portName(vp.vni, overlayIP),
				Status:       StatusUp,
				Discovered:   true,
			}
			m.tunnels[t.ID] = t
			m.nextID++
			discovered++

			m.alloc.Observe(vp.vni)
		}
	}

	if discovered > 0 {
		if err := m.saveLocked(); err != nil {
			util.Errorf("persisting discovered tunnels: %v", err)
		}
	}

	return discovered, nil
}

func hostOverlay(h *hostregistry.Host) string {
	if h.OverlayAddr != "" {
		return h.OverlayAddr
	}
	return h.ManagementAddr
}

func findAnySwitch(switches []hostregistry.Switch, hostID int) (int, bool) {
	for _, sw := range switches {
		if sw.HostID == hostID {
			return sw.ID, true
		}
	}
	return 0, false
}
