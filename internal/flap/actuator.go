// Package flap implements the Flap Actuator Client: local-timer and
// remote-HTTP backends behind a single capability interface.
package flap

import "context"

// LockState is the current actuator state as observed by callers.
type LockState int

const (
	Unlocked LockState = iota
	Locked
)

func (s LockState) String() string {
	if s == Locked {
		return "locked"
	}
	return "unlocked"
}

// Actuator is the Flap Actuator Client capability interface. Exactly one
// implementation (Local or Remote) is active at a time, selected by
// FlapConfig.Mode.
type Actuator interface {
	// Lock engages the flap, preventing entry. Local returns false if it was
	// already locked; Remote returns true whenever the lock command succeeds.
	Lock(ctx context.Context, reason string) (bool, error)
	// Unlock releases the flap. Local returns false if it was not locked;
	// Remote returns false when the controller's status still reads RED.
	Unlock(ctx context.Context, reason string) (bool, error)
	State() LockState
	Close() error
}
