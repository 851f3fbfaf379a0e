package relay

import (
	"errors"
	"sort"
	"sync"
)

// Handler runs one command, consuming its arguments from args
type Handler func(args *[]byte) error

// Command is a registered relay command
type Command struct {
	ID      uint16
	Name    string
	Format  string // argument description, e.g. "count=%u budget=%u"
	Handler Handler
}

// Registry maps command ids to handlers.
// Ids are fixed by the link protocol, so registration takes the id instead of assigning one.
type Registry struct {
	mu       sync.RWMutex
	commands map[uint16]*Command
	names    map[string]uint16
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		commands: make(map[uint16]*Command),
		names:    make(map[string]uint16),
	}
}

// Register adds a command; an id or name already in use is an error
func (r *Registry) Register(id uint16, name, format string, handler Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.commands[id]; exists {
		return errors.New("relay: command id " + itoa(int(id)) + " already registered")
	}
	if _, exists := r.names[name]; exists {
		return errors.New("relay: command " + name + " already registered")
	}
	r.commands[id] = &Command{ID: id, Name: name, Format: format, Handler: handler}
	r.names[name] = id
	return nil
}

// Lookup returns the command registered under id
func (r *Registry) Lookup(id uint16) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.commands[id]
	return cmd, ok
}

// Count returns the number of registered commands
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.commands)
}

// Dispatch runs the handler registered under id
func (r *Registry) Dispatch(id uint16, args *[]byte) error {
	cmd, ok := r.Lookup(id)
	if !ok || cmd.Handler == nil {
		return errors.New("relay: unknown command id " + itoa(int(id)))
	}
	return cmd.Handler(args)
}

// Dictionary lists "id name format" lines in id order
func (r *Registry) Dictionary() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]int, 0, len(r.commands))
	for id := range r.commands {
		ids = append(ids, int(id))
	}
	sort.Ints(ids)

	dict := ""
	for _, id := range ids {
		cmd := r.commands[uint16(id)]
		dict += itoa(id) + " " + cmd.Name
		if cmd.Format != "" {
			dict += " " + cmd.Format
		}
		dict += "\n"
	}
	return dict
}
