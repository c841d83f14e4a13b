package connector

import (
	"net"
	"strconv"
	"strings"

	"github.com/mensylisir/xmdriver/common"
	"github.com/mensylisir/xmdriver/errs"
)

// Host is the remote machine an invocation drives.
type Host struct {
	Address string
	Port    int
	User    string
}

// ParseHost accepts "host", "host:port" or "[v6addr]:port". defaultPort is
// used when the address carries none; zero means 22.
func ParseHost(address, user string, defaultPort int) (Host, error) {
	if defaultPort <= 0 {
		defaultPort = common.DefaultSSHPort
	}
	address = strings.TrimSpace(address)
	if address == "" {
		return Host{}, errs.NewConfiguration("hostname", "must not be empty")
	}
	if strings.TrimSpace(user) == "" {
		return Host{}, errs.NewConfiguration("username", "must not be empty")
	}

	h := Host{Address: address, Port: defaultPort, User: user}

	// A bare IPv6 address has more than one colon and no brackets.
	if strings.Count(address, ":") > 1 && !strings.HasPrefix(address, "[") {
		return h, nil
	}
	if !strings.Contains(address, ":") {
		return h, nil
	}

	host, portStr, err := net.SplitHostPort(address)
	if err != nil {
		return Host{}, errs.NewConfiguration("hostname", "cannot parse %q: %v", address, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return Host{}, errs.NewConfiguration("hostname", "invalid port %q in %q", portStr, address)
	}
	if host == "" {
		return Host{}, errs.NewConfiguration("hostname", "missing host in %q", address)
	}
	h.Address = host
	h.Port = port
	return h, nil
}

// Endpoint returns the dialable "host:port" form.
func (h Host) Endpoint() string {
	return net.JoinHostPort(h.Address, strconv.Itoa(h.Port))
}

func (h Host) String() string {
	return h.User + "@" + h.Endpoint()
}
