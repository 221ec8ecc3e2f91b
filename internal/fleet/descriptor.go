package fleet

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
)

var nodeNameRe = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,63}$`)

// Role distinguishes relay-chain validators from collators.
type Role string

const (
	RoleValidator Role = "validator"
	RoleCollator  Role = "collator"
)

// Port purposes.
const (
	PurposeP2P      = "p2p"
	PurposeRPC      = "rpc"
	PurposeWS       = "ws"
	PurposeRelayP2P = "relay-p2p"
)

// Port is a network port declared by a node, tagged with what it is for.
type Port struct {
	Purpose string
	Number  int
}

// Node is one member of the fleet: everything needed to start its process.
type Node struct {
	Name       string
	Role       Role
	Bin        string
	Args       []string
	WorkingDir string
	Ports      []Port
	Image      string
}

func (n Node) clone() Node {
	n.Args = slices.Clone(n.Args)
	n.Ports = slices.Clone(n.Ports)
	return n
}

// Descriptor is the ordered, immutable set of nodes to launch. Member order is
// start order: validators first, then collators, each in document order.
type Descriptor struct {
	name    string
	docker  DockerConfig
	members []Node
}

// Name returns the chain name.
func (d *Descriptor) Name() string { return d.name }

// Docker returns the image settings from the config.
func (d *Descriptor) Docker() DockerConfig { return d.docker }

// Len returns the number of members.
func (d *Descriptor) Len() int { return len(d.members) }

// Members returns a copy of the members in start order.
func (d *Descriptor) Members() []Node {
	out := make([]Node, len(d.members))
	for i, n := range d.members {
		out[i] = n.clone()
	}
	return out
}

// FromConfig builds a Descriptor from a decoded config. It performs the
// structural checks (names, binaries present, at least one member); call
// Validate for the binary and port checks.
func FromConfig(cfg *Config) (*Descriptor, error) {
	if cfg == nil {
		return nil, &ValidationError{Err: fmt.Errorf("config is empty")}
	}

	d := &Descriptor{name: cfg.Name, docker: cfg.Docker}
	if d.name == "" {
		d.name = DefaultChainName
	}

	seen := make(map[string]bool)
	add := func(role Role, nc NodeConfig) error {
		if nc.Name == "" {
			return &ValidationError{Err: fmt.Errorf("%s at position %d has no name", role, len(d.members)+1)}
		}
		if !nodeNameRe.MatchString(nc.Name) {
			return &ValidationError{Member: nc.Name, Err: fmt.Errorf("name is invalid: must match %s", nodeNameRe)}
		}
		if seen[nc.Name] {
			return &ValidationError{Member: nc.Name, Err: fmt.Errorf("name is used by more than one node")}
		}
		seen[nc.Name] = true
		if nc.Bin == "" {
			return &ValidationError{Member: nc.Name, Err: fmt.Errorf("bin is required")}
		}
		if role == RoleValidator && (nc.RelayPort != 0 || len(nc.RelayArgs) > 0) {
			return &ValidationError{Member: nc.Name, Err: fmt.Errorf("relay_port and relay_args are only valid for collators")}
		}

		d.members = append(d.members, newNode(role, nc))
		return nil
	}

	for _, nc := range cfg.Validators {
		if err := add(RoleValidator, nc); err != nil {
			return nil, err
		}
	}
	for _, nc := range cfg.Collators {
		if err := add(RoleCollator, nc); err != nil {
			return nil, err
		}
	}

	if len(d.members) == 0 {
		return nil, &ValidationError{Err: fmt.Errorf("no validators or collators configured")}
	}

	return d, nil
}

// New builds a Descriptor directly from nodes, in the given order.
func New(name string, nodes ...Node) *Descriptor {
	d := &Descriptor{name: name}
	for _, n := range nodes {
		d.members = append(d.members, n.clone())
	}
	return d
}

func newNode(role Role, nc NodeConfig) Node {
	n := Node{
		Name:       nc.Name,
		Role:       role,
		Bin:        nc.Bin,
		WorkingDir: nc.WorkingDir,
		Image:      nc.Image,
	}

	n.Args = append(n.Args, "--name", nc.Name)
	if nc.Chain != "" {
		n.Args = append(n.Args, "--chain", nc.Chain)
	}

	declare := func(purpose, flag string, number int) {
		if number == 0 {
			return
		}
		n.Ports = append(n.Ports, Port{Purpose: purpose, Number: number})
		n.Args = append(n.Args, flag, strconv.Itoa(number))
	}
	declare(PurposeP2P, "--port", nc.Port)
	declare(PurposeRPC, "--rpc-port", nc.RPCPort)
	declare(PurposeWS, "--ws-port", nc.WSPort)

	n.Args = append(n.Args, nc.Args...)

	if role == RoleCollator && (nc.RelayPort != 0 || len(nc.RelayArgs) > 0) {
		n.Args = append(n.Args, "--")
		declare(PurposeRelayP2P, "--port", nc.RelayPort)
		n.Args = append(n.Args, nc.RelayArgs...)
	}

	return n
}
