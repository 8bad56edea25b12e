// Package progress defines the event structures emitted by monitor cycles.
package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageCheckStart Stage = "CHECK_START"
	StageCheckDone  Stage = "CHECK_DONE"
	StageCheckRetry Stage = "CHECK_RETRY"
	StageCheckError Stage = "CHECK_ERROR"
)

// Event captures a single monitor-cycle milestone.
type Event struct {
	// SubscriptionID identifies the subscription using the 16-byte UUID form.
	SubscriptionID [16]byte
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which cycle milestone occurred.
	Stage Stage
	// StateCode scopes the event to the subscription's court state.
	StateCode string
	// Found carries how many publications the portal returned this cycle.
	Found int64
	// New carries how many publications were persisted for the first time.
	New int64
	// Attempt is the retry ordinal for CHECK_RETRY events.
	Attempt int64
	// Dur captures cycle wall time for terminal stages.
	Dur time.Duration
	// Note lets emitters attach low-volume debug context (e.g. error text).
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.SubscriptionID == [16]byte{} {
		return errors.New("subscription id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageCheckStart, StageCheckDone, StageCheckError:
	case StageCheckRetry:
		if e.Attempt < 1 {
			return errors.New("check retry requires an attempt ordinal")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	if e.Found < 0 || e.New < 0 {
		return errors.New("counts must be >= 0")
	}
	return nil
}

// SubscriptionUUID converts the binary subscription ID to uuid.UUID for
// repositories and log fields.
func (e Event) SubscriptionUUID() uuid.UUID {
	return uuid.UUID(e.SubscriptionID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}
