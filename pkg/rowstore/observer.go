package rowstore

import "time"

// Observer receives the outcome of every table operation.
type Observer interface {
	Observe(sheet, op string, elapsed time.Duration, err error)
}

type nopObserver struct{}

func (nopObserver) Observe(string, string, time.Duration, error) {}

const (
	OpReadAll   = "read_all"
	OpFind      = "find"
	OpAppend    = "append"
	OpUpdate    = "update"
	OpDelete    = "delete"
	OpSetColumn = "set_column"
	OpEnsure    = "ensure"
	OpUnlock    = "unlock"
)
