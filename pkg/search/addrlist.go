package search

import (
	"net"
	"strconv"
	"strings"
)

// DefaultServerPort is the UDP/TCP port CA servers listen on absent an
// EPICS_CA_SERVER_PORT override.
const DefaultServerPort = 5064

// ResolveAddrList builds the set of UDP destinations SEARCH datagrams are
// sent to: the explicit address list plus, if autoAddrList is set, the
// broadcast address of every up, non-loopback IPv4 interface.
func ResolveAddrList(addrList string, autoAddrList bool, defaultPort int) []*net.UDPAddr {
	var out []*net.UDPAddr
	seen := make(map[string]bool)

	add := func(a *net.UDPAddr) {
		key := a.String()
		if !seen[key] {
			seen[key] = true
			out = append(out, a)
		}
	}

	for _, tok := range strings.Fields(addrList) {
		if a := parseHostPort(tok, defaultPort); a != nil {
			add(a)
		}
	}

	if autoAddrList {
		for _, a := range localBroadcastAddrs(defaultPort) {
			add(a)
		}
	}

	return out
}

func parseHostPort(tok string, defaultPort int) *net.UDPAddr {
	host, portStr, err := net.SplitHostPort(tok)
	port := defaultPort
	if err != nil {
		host = tok
	} else if p, perr := strconv.Atoi(portStr); perr == nil {
		port = p
	}
	ip := net.ParseIP(host)
	if ip == nil {
		ips, err := net.LookupIP(host)
		if err != nil || len(ips) == 0 {
			return nil
		}
		ip = ips[0]
	}
	return &net.UDPAddr{IP: ip, Port: port}
}

// localBroadcastAddrs enumerates the IPv4 broadcast address of every up,
// non-loopback interface, following the same interface-enumeration
// approach as the reference JNI broadcast-address lookup this module's
// auto-list mode is modeled on. IPv6 is out of scope: CA predates IPv6
// deployment in this ecosystem.
func localBroadcastAddrs(port int) []*net.UDPAddr {
	var out []*net.UDPAddr
	ifaces, err := net.Interfaces()
	if err != nil {
		return out
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ipnet, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			ip4 := ipnet.IP.To4()
			if ip4 == nil {
				continue
			}
			bcast := make(net.IP, len(ip4))
			mask := ipnet.Mask
			for i := range ip4 {
				bcast[i] = ip4[i] | ^mask[i]
			}
			out = append(out, &net.UDPAddr{IP: bcast, Port: port})
		}
	}
	return out
}
