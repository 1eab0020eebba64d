package port

import (
	"fmt"
	"net"
	"strconv"
)

// Scanner checks whether TCP addresses are available on the host machine.
//
// It asks the operating system directly by binding a listener and closing
// it immediately, rather than parsing /proc/net/* or shelling out to lsof,
// which may require elevated permissions.
type Scanner struct{}

// NewScanner creates a new Scanner instance.
func NewScanner() *Scanner {
	return &Scanner{}
}

// IsAddrAvailable reports whether host:port can be bound for TCP.
//
// The probe binds the same host the server will bind. For a wildcard host
// ("0.0.0.0" or "::") that also catches a process listening on a single
// interface of the same port.
func (s *Scanner) IsAddrAvailable(host string, port int) bool {
	if port < 0 || port > 65535 {
		return false
	}
	listener, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return false
	}
	_ = listener.Close()
	return true
}

// FindAvailablePort scans [startPort, endPort] (inclusive) on host and
// returns the first free port. The search is sequential so the same port
// is picked consistently on an idle machine.
func (s *Scanner) FindAvailablePort(host string, startPort, endPort int) (int, error) {
	for port := startPort; port <= endPort; port++ {
		if s.IsAddrAvailable(host, port) {
			return port, nil
		}
	}
	return 0, fmt.Errorf("no available tcp port found on %s in range %d-%d", host, startPort, endPort)
}
