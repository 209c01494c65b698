package health

import (
	"context"
)

// StateReporter is anything with a connection state, such as peer.Session.
type StateReporter[S ~string] interface {
	State() S
}

// ConnectedCheck is healthy while r reports want.
func ConnectedCheck[S ~string](r StateReporter[S], want S) CheckFunc {
	return func(ctx context.Context) (bool, string) {
		st := r.State()
		return st == want, string(st)
	}
}
