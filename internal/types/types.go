// README: Common value objects shared across modules.
package types

// ID is an opaque entity identifier as issued by the host platform.
type ID string

type Money struct {
	Amount   int64
	Currency string
}
