package common

import "fmt"

// ErrModulePaused is wrapped with the module name when a guard rejects an
// operation.
var ErrModulePaused = fmt.Errorf("module paused")

// PauseView exposes the operator pause switches consulted before every
// mutating operation.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard rejects the operation when the named module is paused. A nil view or
// empty module name disables the check.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return fmt.Errorf("%w: %s", ErrModulePaused, module)
	}
	return nil
}
