package tray

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	psnet "github.com/shirou/gopsutil/v3/net"
	"github.com/shirou/gopsutil/v3/process"
)

// Listener describes a local process accepting connections on the tray port
type Listener struct {
	Port    uint32
	PID     int32
	Process string
}

// PortFromURL extracts the TCP port of a ws:// or wss:// URL
func PortFromURL(rawURL string) (uint32, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return 0, err
	}
	port := u.Port()
	if port == "" {
		switch u.Scheme {
		case "wss":
			port = "443"
		default:
			port = "80"
		}
	}
	n, err := strconv.ParseUint(port, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid port %q: %w", port, err)
	}
	return uint32(n), nil
}

// FindListener reports which local process, if any, listens on port.
// It does not talk to the daemon, so it is safe to call while a drawer
// operation is running.
func FindListener(ctx context.Context, port uint32) (*Listener, error) {
	conns, err := psnet.ConnectionsWithContext(ctx, "tcp")
	if err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}

	for _, c := range conns {
		if c.Status != "LISTEN" || c.Laddr.Port != port {
			continue
		}

		l := &Listener{Port: port, PID: c.Pid}
		if c.Pid > 0 {
			if p, err := process.NewProcessWithContext(ctx, c.Pid); err == nil {
				l.Process, _ = p.NameWithContext(ctx)
			}
		}
		return l, nil
	}
	return nil, nil
}
