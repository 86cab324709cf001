// Package firmware is the device side of the caprand command protocol: a
// registry of commands and responses, the data dictionary the host reads
// at connect time, and the service whose handlers drive the noise source
// and the seeded generator.
package firmware

import (
	"errors"
	"sync"

	"caprand/core"
)

var (
	ErrUnknownCommand = errors.New("firmware: unknown command")
	ErrNotCommand     = errors.New("firmware: response id sent as command")
)

// Handler decodes its own arguments from data
type Handler func(data *[]byte) error

// Command is a registered command or, without a handler, a response
type Command struct {
	ID      uint16
	Name    string
	Format  string // Argument format for the dictionary, e.g. "count=%c"
	Handler Handler
}

// Signature returns the dictionary key: the name followed by its format
func (c *Command) Signature() string {
	if c.Format == "" {
		return c.Name
	}
	return c.Name + " " + c.Format
}

// IsResponse reports whether the message flows device to host
func (c *Command) IsResponse() bool {
	return c.Handler == nil
}

// Registry assigns message ids in registration order
type Registry struct {
	mu     sync.RWMutex
	byID   []*Command
	byName map[string]*Command
}

// NewRegistry returns an empty registry
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*Command)}
}

// Register adds a command and returns its id. Registering a name twice
// returns the first id.
func (r *Registry) Register(name, format string, h Handler) uint16 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.byName[name]; ok {
		return c.ID
	}
	c := &Command{ID: uint16(len(r.byID)), Name: name, Format: format, Handler: h}
	r.byID = append(r.byID, c)
	r.byName[name] = c
	return c.ID
}

// RegisterResponse adds a device to host message
func (r *Registry) RegisterResponse(name, format string) uint16 {
	return r.Register(name, format, nil)
}

// Lookup returns the message with id
func (r *Registry) Lookup(id uint16) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if int(id) >= len(r.byID) {
		return nil, false
	}
	return r.byID[id], true
}

// ByName returns the message called name
func (r *Registry) ByName(name string) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byName[name]
	return c, ok
}

// Count returns the number of registered messages
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// Messages returns every message in id order
func (r *Registry) Messages() []*Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Command, len(r.byID))
	copy(out, r.byID)
	return out
}

// Dispatch runs the handler registered for id
func (r *Registry) Dispatch(id uint16, data *[]byte) error {
	c, ok := r.Lookup(id)
	if !ok {
		return errors.Join(ErrUnknownCommand, errors.New("id "+core.Itoa(int(id))))
	}
	if c.IsResponse() {
		return ErrNotCommand
	}
	return c.Handler(data)
}
