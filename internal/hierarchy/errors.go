package hierarchy

import (
	"errors"
	"fmt"
)

// Error kinds reported by the item store and the engine built on it.
var (
	ErrInvalidItem            = errors.New("invalid item")
	ErrAmbiguousOwnership     = errors.New("ambiguous ownership")
	ErrCyclicReparent         = errors.New("reparent would create a cycle")
	ErrVirtualBranchViolation = errors.New("virtual branch items cannot be relocated")
	ErrPluginOperationFailed  = errors.New("plugin operation failed")
	ErrDuplicateDataObject    = errors.New("data object already has an item")
	ErrUnresolvable           = errors.New("unresolved items could not be placed")
)

// OperationError describes a failed operation on a specific item. It wraps
// one of the sentinel errors above so callers can test with errors.Is.
type OperationError struct {
	Op     string
	Item   ItemID
	Target ItemID
	Plugin string
	Err    error
}

func (e *OperationError) Error() string {
	msg := fmt.Sprintf("%s item %d", e.Op, e.Item)
	if e.Target != InvalidItemID {
		msg += fmt.Sprintf(" -> %d", e.Target)
	}
	if e.Plugin != "" {
		msg += fmt.Sprintf(" (plugin %s)", e.Plugin)
	}
	return msg + ": " + e.Err.Error()
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

func opError(op string, item, target ItemID, err error) error {
	return &OperationError{Op: op, Item: item, Target: target, Err: err}
}
