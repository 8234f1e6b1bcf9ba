package probe

import "net"

// InterfaceAddrsFunc matches net.InterfaceAddrs.
type InterfaceAddrsFunc func() ([]net.Addr, error)

// FirstIPv4 returns the first non-loopback IPv4 address reported by addrs,
// or an empty string.
func FirstIPv4(addrs InterfaceAddrsFunc) string {
	list, err := addrs()
	if err != nil {
		return ""
	}
	for _, addr := range list {
		var ip net.IP
		switch v := addr.(type) {
		case *net.IPNet:
			ip = v.IP
		case *net.IPAddr:
			ip = v.IP
		}
		if ip == nil || ip.IsLoopback() || ip.IsLinkLocalUnicast() {
			continue
		}
		if v4 := ip.To4(); v4 != nil {
			return v4.String()
		}
	}
	return ""
}
