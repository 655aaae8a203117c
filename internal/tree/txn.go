package tree

import (
	"fmt"

	"github.com/roach88/timetravel/internal/ir"
)

// Txn is the working copy handed to Tree.Update. Changes made through it
// become visible to readers and subscribers only when Update commits.
type Txn struct {
	work ir.IRObject
}

// Get returns a deep copy of the value at path in the working copy.
func (tx *Txn) Get(path string) (ir.IRValue, error) {
	p, err := ParsePath(path)
	if err != nil {
		return nil, err
	}
	v, err := getAt(tx.work, p)
	if err != nil {
		return nil, err
	}
	return ir.Clone(v), nil
}

// Set writes a copy of v at path.
func (tx *Txn) Set(path string, v ir.IRValue) error {
	p, err := ParsePath(path)
	if err != nil {
		return err
	}
	if v == nil {
		return fmt.Errorf("%w: nil at %s (use ir.IRNull)", ErrInvalidValue, p)
	}
	v = ir.Clone(v)

	if p.IsRoot() {
		obj, ok := v.(ir.IRObject)
		if !ok {
			return fmt.Errorf("%w: root must be an object, got %s", ErrTypeMismatch, ir.TypeName(v))
		}
		tx.work = obj
		return nil
	}

	updated, err := setAt(tx.work, p, v)
	if err != nil {
		return fmt.Errorf("set %s: %w", p, err)
	}
	tx.work = updated.(ir.IRObject)
	return nil
}

// Delete removes the value at path from the working copy.
func (tx *Txn) Delete(path string) error {
	p, err := ParsePath(path)
	if err != nil {
		return err
	}
	updated, err := deleteAt(tx.work, p)
	if err != nil {
		return fmt.Errorf("delete %s: %w", p, err)
	}
	tx.work = updated.(ir.IRObject)
	return nil
}
