package backend

import (
	"net"
	"strconv"
	"strings"
	"time"
)

// DefaultHost is used when Options.Hosts is empty.
const DefaultHost = "127.0.0.1"

// Options carries the connection settings shared by network backends.
type Options struct {
	// Hosts and Ports are parallel lists. When there are fewer ports than
	// hosts the first port is reused for the remaining hosts.
	Hosts []string
	Ports []int

	Timeout       time.Duration // 0 => backend/client default
	NonPersistent bool          // default false => keep idle connections for reuse
}

// Endpoints pairs hosts with ports as "host:port" strings. A missing or zero
// first port is replaced with defaultPort.
func (o Options) Endpoints(defaultPort int) []string {
	hosts := make([]string, 0, len(o.Hosts))
	for _, h := range o.Hosts {
		if h = strings.TrimSpace(h); h != "" {
			hosts = append(hosts, h)
		}
	}
	if len(hosts) == 0 {
		hosts = []string{DefaultHost}
	}

	first := defaultPort
	if len(o.Ports) > 0 && o.Ports[0] > 0 {
		first = o.Ports[0]
	}

	out := make([]string, len(hosts))
	for i, h := range hosts {
		port := first
		if i < len(o.Ports) && o.Ports[i] > 0 {
			port = o.Ports[i]
		}
		out[i] = net.JoinHostPort(h, strconv.Itoa(port))
	}
	return out
}
