package utils

import (
	"net"
	"os"
	"os/user"
	"runtime"
)

// GetUsername returns the current username.
func GetUsername() (string, error) {
	user, err := user.Current()
	if err != nil {
		return "", err
	}
	return user.Username, nil
}

// GetHostname returns the system hostname.
func GetHostname() (string, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return "", err
	}
	return hostname, nil
}

// LocalIP returns the address of the interface that routes to the public
// internet. No packet is sent: dialing UDP only selects a route.
func LocalIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err == nil {
		defer conn.Close()
		if addr, ok := conn.LocalAddr().(*net.UDPAddr); ok {
			return addr.IP.String()
		}
	}

	if hostname, err := os.Hostname(); err == nil {
		if addrs, err := net.LookupHost(hostname); err == nil {
			for _, a := range addrs {
				if ip := net.ParseIP(a); ip != nil && ip.To4() != nil && !ip.IsLoopback() {
					return a
				}
			}
		}
	}

	return "127.0.0.1"
}

// HostIdentity describes the local machine to a peer.
type HostIdentity struct {
	Hostname string
	User     string
	System   string
}

// LocalIdentity gathers host identity with placeholder fallbacks, so it never fails.
func LocalIdentity() HostIdentity {
	id := HostIdentity{Hostname: "localhost", User: "user", System: runtime.GOOS}
	if h, err := GetHostname(); err == nil && h != "" {
		id.Hostname = h
	}
	if u, err := GetUsername(); err == nil && u != "" {
		id.User = u
	}
	return id
}
