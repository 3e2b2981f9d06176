// Package operation defines the contract for wrapped data-access operations.
package operation

import (
	"context"

	"github.com/felixgeelhaar/datakit/domain/store"
)

// Func is the raw body of a data-access operation. The handle is supplied by
// the resource scope; for mutating operations a transaction is already open
// on it, so writes through the handle are atomic with the surrounding call.
type Func func(ctx context.Context, h store.Handle, args map[string]any) (any, error)
