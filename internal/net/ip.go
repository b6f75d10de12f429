package net

import (
	"log/slog"
	"net"
)

// OutgoingIP finds the preferred local IP address for share links.
func OutgoingIP(logger *slog.Logger) string {
	if logger == nil {
		logger = slog.Default()
	}
	// No packets are sent; dialing UDP only picks the outgoing interface.
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return localIPFallback(logger)
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String()
}

// localIPFallback is used on networks without internet access.
func localIPFallback(logger *slog.Logger) string {
	if ip := firstIPv4(logger); !ip.IsLoopback() {
		return ip.String()
	}
	logger.Warn("no non-loopback address found, share links will only work locally")
	return "127.0.0.1"
}

var listInterfaces = net.Interfaces

func firstIPv4(logger *slog.Logger) net.IP {
	ifaces, err := listInterfaces()
	if err != nil {
		logger.Debug("listing interfaces", "error", err)
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			logger.Debug("listing interface addresses", "interface", iface.Name, "error", err)
			continue
		}
		for _, a := range addrs {
			if ipnet, ok := a.(*net.IPNet); ok && ipnet.IP.To4() != nil {
				return ipnet.IP.To4()
			}
		}
	}
	return net.IPv4(127, 0, 0, 1)
}
