package process

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Protocol is the transport protocol OpenVPN uses to reach a remote.
type Protocol string

const (
	// ProtocolUDP is OpenVPN's default transport.
	ProtocolUDP Protocol = "udp"

	// ProtocolTCP tunnels over a TCP connection.
	ProtocolTCP Protocol = "tcp"
)

// ErrNoRemotes is returned when a command is built without any remote.
var ErrNoRemotes = errors.New("at least one remote is required")

// Remote is a VPN server endpoint.
type Remote struct {
	Host     string
	Port     int
	Protocol Protocol
}

// String returns the remote in host:port/proto form.
func (r Remote) String() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(r.Port)) + "/" + string(r.Protocol)
}

// ParseRemote parses "host:port" or "host:port/proto".
// The protocol defaults to udp. IPv6 hosts must be bracketed.
func ParseRemote(s string) (Remote, error) {
	addr, proto, hasProto := strings.Cut(strings.TrimSpace(s), "/")

	r := Remote{Protocol: ProtocolUDP}
	if hasProto {
		switch Protocol(strings.ToLower(proto)) {
		case ProtocolUDP:
		case ProtocolTCP:
			r.Protocol = ProtocolTCP
		default:
			return Remote{}, fmt.Errorf("remote %q: protocol must be udp or tcp (got %q)", s, proto)
		}
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return Remote{}, fmt.Errorf("remote %q: %w", s, err)
	}
	if host == "" {
		return Remote{}, fmt.Errorf("remote %q: host is required", s)
	}
	p, err := strconv.Atoi(port)
	if err != nil || p < 1 || p > 65535 {
		return Remote{}, fmt.Errorf("remote %q: port must be between 1 and 65535", s)
	}

	r.Host = host
	r.Port = p
	return r, nil
}

// OpenVPNConfig holds the operator's choices for one OpenVPN invocation.
type OpenVPNConfig struct {
	// BinaryPath is the path to the OpenVPN binary.
	BinaryPath string

	// ConfigPath is the OpenVPN configuration file passed with --config.
	ConfigPath string

	// Remotes are tried by OpenVPN in order.
	Remotes []Remote

	// PipeOutput forwards the child's stdout and stderr to the supervisor.
	PipeOutput bool
}

// Command describes how to invoke OpenVPN. It is immutable once built.
type Command struct {
	path       string
	configPath string
	remotes    []Remote
	pipeOutput bool
}

// NewCommand builds a Command from cfg. It fails if cfg has no remotes.
func NewCommand(cfg OpenVPNConfig) (*Command, error) {
	if len(cfg.Remotes) == 0 {
		return nil, ErrNoRemotes
	}
	remotes := make([]Remote, len(cfg.Remotes))
	copy(remotes, cfg.Remotes)

	return &Command{
		path:       cfg.BinaryPath,
		configPath: cfg.ConfigPath,
		remotes:    remotes,
		pipeOutput: cfg.PipeOutput,
	}, nil
}

// Path returns the executable path.
func (c *Command) Path() string { return c.path }

// ConfigPath returns the OpenVPN configuration file.
func (c *Command) ConfigPath() string { return c.configPath }

// PipeOutput reports whether child output should be forwarded.
func (c *Command) PipeOutput() bool { return c.pipeOutput }

// Remotes returns a copy of the remote list.
func (c *Command) Remotes() []Remote {
	remotes := make([]Remote, len(c.remotes))
	copy(remotes, c.remotes)
	return remotes
}

// Args constructs the OpenVPN command-line arguments.
func (c *Command) Args() []string {
	args := make([]string, 0, 2+4*len(c.remotes))
	if c.configPath != "" {
		args = append(args, "--config", c.configPath)
	}
	for _, r := range c.remotes {
		args = append(args, "--remote", r.Host, strconv.Itoa(r.Port), string(r.Protocol))
	}
	return args
}

// CommandString returns the command that would be executed (for debugging).
func (c *Command) CommandString() string {
	return c.path + " " + strings.Join(c.Args(), " ")
}
