package permission

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// RoleDef is a role and the permissions it grants, as stored by the
// persistence layer.
type RoleDef struct {
	Name        string
	Permissions []string
}

// RoleManager resolves role names to permission masks.
type RoleManager struct {
	registry *Registry

	mu     sync.RWMutex
	roles  map[string]Mask
	grants map[string][]string
	frozen bool
}

func NewRoleManager(registry *Registry) *RoleManager {
	return &RoleManager{
		registry: registry,
		roles:    make(map[string]Mask),
		grants:   make(map[string][]string),
	}
}

// RegisterRole defines roleName with the given permissions. Every
// permission must already be in the registry.
func (rm *RoleManager) RegisterRole(roleName string, permissionNames []string) error {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.frozen {
		return ErrFrozen
	}
	if roleName == "" {
		return errors.New("role name empty")
	}
	if _, exists := rm.roles[roleName]; exists {
		return fmt.Errorf("%w: role %q", ErrDuplicateName, roleName)
	}

	mask := rm.registry.NewMask()
	granted := make([]string, 0, len(permissionNames))
	for _, perm := range permissionNames {
		bit, ok := rm.registry.Bit(perm)
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownPermission, perm)
		}
		if !mask.Has(bit) {
			granted = append(granted, perm)
		}
		mask.Set(bit)
	}
	sort.Strings(granted)

	rm.roles[roleName] = mask
	rm.grants[roleName] = granted
	return nil
}

// GetMask returns the permission mask for roleName.
func (rm *RoleManager) GetMask(roleName string) (Mask, bool) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	mask, ok := rm.roles[roleName]
	return mask, ok
}

// Permissions returns the sorted permission names granted by roleName.
func (rm *RoleManager) Permissions(roleName string) []string {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return append([]string(nil), rm.grants[roleName]...)
}

// HasPermission reports whether any of roles grants perm. Unknown roles and
// unknown permissions grant nothing.
func (rm *RoleManager) HasPermission(roles []string, perm string) bool {
	bit, ok := rm.registry.Bit(perm)
	if !ok {
		return false
	}

	rm.mu.RLock()
	defer rm.mu.RUnlock()
	for _, role := range roles {
		if mask, ok := rm.roles[role]; ok && mask.Has(bit) {
			return true
		}
	}
	return false
}

// RoleNames returns every registered role, sorted.
func (rm *RoleManager) RoleNames() []string {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	out := make([]string, 0, len(rm.roles))
	for name := range rm.roles {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Freeze prevents further role registration and freezes the registry.
func (rm *RoleManager) Freeze() {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.frozen = true
	rm.registry.Freeze()
}

func (rm *RoleManager) Count() int {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return len(rm.roles)
}

// Load builds a frozen RoleManager from a permission catalogue and role
// definitions.
func Load(permissions []string, roles []RoleDef) (*RoleManager, error) {
	registry, err := NewRegistry(DefaultMaxBits)
	if err != nil {
		return nil, err
	}
	for _, p := range permissions {
		if _, err := registry.Register(p); err != nil {
			return nil, err
		}
	}

	rm := NewRoleManager(registry)
	for _, role := range roles {
		if err := rm.RegisterRole(role.Name, role.Permissions); err != nil {
			return nil, err
		}
	}
	rm.Freeze()
	return rm, nil
}
