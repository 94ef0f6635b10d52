package config

import (
	"fmt"
	"strconv"
	"strings"
)

// DescriptorFormat is the expected shape of the connection descriptor passed
// on the command line.
const DescriptorFormat = "user/password@host:port/service"

// Descriptor is a parsed Oracle connection descriptor.
type Descriptor struct {
	User     string
	Password string
	Host     string
	Port     int
	Service  string
}

// ParseDescriptor parses a descriptor of the form user/password@host:port/service.
// Error messages never echo the password.
func ParseDescriptor(s string) (*Descriptor, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("missing connection descriptor: expected %s", DescriptorFormat)
	}

	// The last '@' splits credentials from the target: passwords may
	// contain '@', host:port/service cannot.
	at := strings.LastIndex(s, "@")
	if at < 0 {
		return nil, fmt.Errorf("invalid connection descriptor: expected %s", DescriptorFormat)
	}
	credentials, target := s[:at], s[at+1:]

	slash := strings.Index(credentials, "/")
	if slash < 0 {
		return nil, fmt.Errorf("invalid connection descriptor: missing password separator, expected %s", DescriptorFormat)
	}
	user, password := credentials[:slash], credentials[slash+1:]
	if user == "" || password == "" {
		return nil, fmt.Errorf("invalid connection descriptor: user and password must not be empty, expected %s", DescriptorFormat)
	}

	slash = strings.Index(target, "/")
	if slash < 0 {
		return nil, fmt.Errorf("invalid connection descriptor: missing service name, expected %s", DescriptorFormat)
	}
	hostport, service := target[:slash], target[slash+1:]
	if service == "" {
		return nil, fmt.Errorf("invalid connection descriptor: service name must not be empty, expected %s", DescriptorFormat)
	}

	colon := strings.LastIndex(hostport, ":")
	if colon < 0 {
		return nil, fmt.Errorf("invalid connection descriptor: missing port, expected %s", DescriptorFormat)
	}
	host, portStr := hostport[:colon], hostport[colon+1:]
	if host == "" {
		return nil, fmt.Errorf("invalid connection descriptor: host must not be empty, expected %s", DescriptorFormat)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return nil, fmt.Errorf("invalid connection descriptor: port %q is not a valid port number, expected %s", portStr, DescriptorFormat)
	}

	return &Descriptor{
		User:     user,
		Password: password,
		Host:     host,
		Port:     port,
		Service:  service,
	}, nil
}

// ConnectString returns the host:port/service part, the form the driver wants.
func (d *Descriptor) ConnectString() string {
	return fmt.Sprintf("%s:%d/%s", d.Host, d.Port, d.Service)
}

// Redacted returns user@host:port/service, safe for logs and resource URIs.
func (d *Descriptor) Redacted() string {
	return fmt.Sprintf("%s@%s:%d/%s", d.User, d.Host, d.Port, d.Service)
}
