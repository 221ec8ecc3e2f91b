package port

import (
	"fmt"
	"net"
)

// Claim is a single declared port and who declared it.
type Claim struct {
	Owner   string
	Purpose string
	Port    int
}

// ConflictError reports two claims on the same port number.
type ConflictError struct {
	Port  int
	First Claim
	Other Claim
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("port %d claimed by %q (%s) and %q (%s)",
		e.Port, e.First.Owner, e.First.Purpose, e.Other.Owner, e.Other.Purpose)
}

// Registry records port claims and rejects duplicates. It performs no I/O.
// A Registry is not safe for concurrent use.
type Registry struct {
	claims map[int]Claim // port → first claim
	order  []Claim
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{claims: make(map[int]Claim)}
}

// Claim records a port for owner. It returns a *ConflictError if the port was
// already claimed, by the same owner or another one.
func (r *Registry) Claim(owner, purpose string, port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("%s port %d out of range 1-65535", purpose, port)
	}

	c := Claim{Owner: owner, Purpose: purpose, Port: port}
	if existing, ok := r.claims[port]; ok {
		return &ConflictError{Port: port, First: existing, Other: c}
	}

	r.claims[port] = c
	r.order = append(r.order, c)
	return nil
}

// Claims returns all accepted claims in the order they were made.
func (r *Registry) Claims() []Claim {
	out := make([]Claim, len(r.order))
	copy(out, r.order)
	return out
}

// Available reports whether a TCP listener can be bound on 127.0.0.1:port.
func Available(port int) bool {
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return false
	}
	ln.Close()
	return true
}
