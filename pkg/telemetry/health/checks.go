package health

import (
	"context"
	"errors"
	"fmt"

	"mercator-hq/bulwark/pkg/policy/registry"
)

// ErrNoSnapshot is reported while the registry has no installed snapshot.
var ErrNoSnapshot = errors.New("no resilience snapshot installed")

// RegistryCheck passes once reg has an installed snapshot.
func RegistryCheck(reg *registry.Registry) CheckFunc {
	return func(context.Context) error {
		if reg.State() != registry.StateReady {
			return ErrNoSnapshot
		}
		return nil
	}
}

// LastErrorCheck fails while lastErr returns an error. The policy manager
// uses it to report a failed reload; the previous snapshot keeps serving.
func LastErrorCheck(lastErr func() error) CheckFunc {
	return func(context.Context) error {
		if err := lastErr(); err != nil {
			return fmt.Errorf("last reload failed: %w", err)
		}
		return nil
	}
}

// Pinger is implemented by stores that can report their connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck passes while p answers Ping.
func PingCheck(p Pinger) CheckFunc {
	return func(ctx context.Context) error {
		return p.Ping(ctx)
	}
}
