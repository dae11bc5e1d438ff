package catalog

import "fmt"

// Op classifies a store operation for error tagging.
type Op string

const (
	OpInit   Op = "init"
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
	OpQuery  Op = "query"
)

// StoreError wraps a storage-layer failure with the kind of operation that
// produced it. The store never swallows a write failure; every error
// surfaced to callers carries its Op.
type StoreError struct {
	Op  Op
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("catalog %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func storeErr(op Op, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}
