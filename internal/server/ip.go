package server

import (
	"net"
	"strings"
)

// priorityInterfaces are checked first when picking the address to
// advertise, so a machine with several adapters reports the one a LAN
// peer can actually reach.
var priorityInterfaces = []string{"Ethernet", "Wi-Fi", "WiFi", "en0", "eth0"}

// virtualInterfaceMarkers identify adapters that should never be
// advertised (hypervisor switches, container bridges).
var virtualInterfaceMarkers = []string{"vethernet", "default switch", "virtual"}

// LocalIPAddress returns the best non-loopback IPv4 address of this
// host for LAN peers to connect to, or "localhost" when none is found.
func LocalIPAddress() string {
	ifaces, err := net.Interfaces()
	if err != nil {
		return "localhost"
	}

	// Exact match on priority interface names first.
	for _, name := range priorityInterfaces {
		for _, iface := range ifaces {
			if iface.Name == name {
				if addr := firstIPv4(iface); addr != "" {
					return addr
				}
			}
		}
	}

	// Then a contains match, still skipping virtual adapters.
	for _, name := range priorityInterfaces {
		for _, iface := range ifaces {
			lower := strings.ToLower(iface.Name)
			if !strings.Contains(lower, strings.ToLower(name)) || isVirtual(lower) {
				continue
			}
			if addr := firstIPv4(iface); addr != "" {
				return addr
			}
		}
	}

	// Finally any physical adapter with an IPv4 address.
	for _, iface := range ifaces {
		if isVirtual(strings.ToLower(iface.Name)) {
			continue
		}
		if addr := firstIPv4(iface); addr != "" {
			return addr
		}
	}

	return "localhost"
}

func isVirtual(lowerName string) bool {
	for _, marker := range virtualInterfaceMarkers {
		if strings.Contains(lowerName, marker) {
			return true
		}
	}
	return false
}

func firstIPv4(iface net.Interface) string {
	if iface.Flags&net.FlagLoopback != 0 || iface.Flags&net.FlagUp == 0 {
		return ""
	}
	addrs, err := iface.Addrs()
	if err != nil {
		return ""
	}
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok {
			continue
		}
		if ip4 := ipNet.IP.To4(); ip4 != nil && !ip4.IsLoopback() {
			return ip4.String()
		}
	}
	return ""
}

// InterfaceAddr describes one address of a network interface for the
// /ip diagnostics endpoint.
type InterfaceAddr struct {
	Address  string `json:"address"`
	Family   string `json:"family"`
	Internal bool   `json:"internal"`
}

// AllNetworkInterfaces returns every interface address on the host,
// keyed by interface name.
func AllNetworkInterfaces() map[string][]InterfaceAddr {
	result := make(map[string][]InterfaceAddr)

	ifaces, err := net.Interfaces()
	if err != nil {
		return result
	}

	for _, iface := range ifaces {
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		entries := make([]InterfaceAddr, 0, len(addrs))
		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			family := "IPv6"
			if ipNet.IP.To4() != nil {
				family = "IPv4"
			}
			entries = append(entries, InterfaceAddr{
				Address:  ipNet.IP.String(),
				Family:   family,
				Internal: ipNet.IP.IsLoopback(),
			})
		}
		result[iface.Name] = entries
	}

	return result
}
