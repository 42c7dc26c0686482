package permission

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrDuplicateName is returned when a permission or role name is
	// registered twice.
	ErrDuplicateName = errors.New("name already registered")
	// ErrUnknownPermission is returned when a role references a permission
	// that was never registered.
	ErrUnknownPermission = errors.New("permission not registered")
	// ErrFrozen is returned by mutations after Freeze.
	ErrFrozen = errors.New("registry frozen")
)

// DefaultMaxBits is the registry width used by Load.
const DefaultMaxBits = 256

// Registry maps permission names to bit positions.
type Registry struct {
	maxBits int

	mu        sync.RWMutex
	nameToBit map[string]int
	bitToName map[int]string
	frozen    bool
}

// NewRegistry creates a Registry holding at most maxBits permissions.
// maxBits must be a positive multiple of 64.
func NewRegistry(maxBits int) (*Registry, error) {
	if maxBits <= 0 || maxBits%64 != 0 {
		return nil, errors.New("invalid maxBits")
	}
	return &Registry{
		maxBits:   maxBits,
		nameToBit: make(map[string]int),
		bitToName: make(map[int]string),
	}, nil
}

// Register assigns the next free bit to name and returns it.
func (r *Registry) Register(name string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return -1, ErrFrozen
	}
	if name == "" {
		return -1, errors.New("permission name cannot be empty")
	}
	if _, exists := r.nameToBit[name]; exists {
		return -1, fmt.Errorf("%w: permission %q", ErrDuplicateName, name)
	}

	next := len(r.nameToBit)
	if next >= r.maxBits {
		return -1, errors.New("permission limit exceeded")
	}

	r.nameToBit[name] = next
	r.bitToName[next] = name
	return next, nil
}

// Bit returns the bit assigned to name.
func (r *Registry) Bit(name string) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bit, ok := r.nameToBit[name]
	return bit, ok
}

// Name returns the permission assigned to bit.
func (r *Registry) Name(bit int) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.bitToName[bit]
	return name, ok
}

// NewMask returns an empty mask sized for this registry.
func (r *Registry) NewMask() Mask {
	return NewMask(r.maxBits)
}

func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nameToBit)
}
