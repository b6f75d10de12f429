package net

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/mdns"
)

// ServiceType is the mDNS service EmojiArt share servers advertise.
const ServiceType = "_emojiart._tcp"

const txtMarker = "emojiart"

// Peer is a share server found on the local network.
type Peer struct {
	Instance string
	Addr     string
}

// Advertise announces a share server on port. instance defaults to the
// host name. Shut the returned server down to withdraw the announcement.
func Advertise(instance string, port int, logger *slog.Logger) (*mdns.Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if instance == "" {
		host, err := os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("net: hostname: %w", err)
		}
		instance = host
	}

	service, err := mdns.NewMDNSService(instance, ServiceType, "", "", port, []net.IP{firstIPv4(logger)}, []string{txtMarker})
	if err != nil {
		return nil, fmt.Errorf("net: mdns service: %w", err)
	}
	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return nil, fmt.Errorf("net: mdns server: %w", err)
	}
	logger.Info("advertising share server", "instance", instance, "port", port)
	return server, nil
}

// Browse queries the network for share servers for up to timeout and calls
// found for each one. Entries without the EmojiArt TXT marker are skipped.
func Browse(ctx context.Context, timeout time.Duration, found func(Peer)) error {
	entries := make(chan *mdns.ServiceEntry, 8)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for e := range entries {
			if p, ok := peerFromEntry(e); ok {
				found(p)
			}
		}
	}()

	params := mdns.DefaultParams(ServiceType)
	params.Entries = entries
	params.Timeout = timeout
	params.DisableIPv6 = true
	if dl, ok := ctx.Deadline(); ok && time.Until(dl) < timeout {
		params.Timeout = time.Until(dl)
	}
	err := mdns.Query(params)
	close(entries)
	<-done
	if err != nil {
		return fmt.Errorf("net: mdns query: %w", err)
	}
	return ctx.Err()
}

func peerFromEntry(e *mdns.ServiceEntry) (Peer, bool) {
	if e == nil || e.AddrV4 == nil || e.Port == 0 {
		return Peer{}, false
	}
	marked := false
	for _, f := range e.InfoFields {
		if f == txtMarker {
			marked = true
		}
	}
	if !marked {
		return Peer{}, false
	}
	instance, _, _ := strings.Cut(e.Name, ".")
	return Peer{
		Instance: instance,
		Addr:     net.JoinHostPort(e.AddrV4.String(), fmt.Sprint(e.Port)),
	}, true
}
