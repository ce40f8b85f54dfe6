// Package signaling coordinates a single active invitation: the host
// registers an invite link with a guest capacity, guests join against that
// capacity, and the host can promote the invite link to a shareable one.
//
// The invite record is deliberately ephemeral process-lifetime state; it
// does not survive restarts and has no expiry. A new registration
// supersedes any in-flight invitation, including its join progress.
package signaling

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrNoInvite indicates an operation that requires a registered
	// invite link was called before one was set.
	ErrNoInvite = errors.New("no invite link registered")

	// ErrCapacityExceeded indicates a join attempt against a full
	// invitation. It is an expected outcome, not a fault.
	ErrCapacityExceeded = errors.New("all guests already joined")

	// ErrInvariantViolation indicates the guest count overshot capacity.
	// It should never occur; it signals a concurrency-control bug and is
	// never silently corrected.
	ErrInvariantViolation = errors.New("guest count invariant violated")
)

// Record is a snapshot of the invitation state. Link fields are nil when
// unset.
type Record struct {
	InviteLink     *string
	ExpectedGuests int
	GuestCount     int
	ShareLink      *string
}

// Coordinator owns the process-wide invite record. Every operation,
// reads included, holds the same mutex so callers always observe a
// consistent snapshot and the guest count never exceeds capacity.
type Coordinator struct {
	mu             sync.Mutex
	inviteLink     *string
	expectedGuests int
	guestCount     int
	shareLink      *string
}

// NewCoordinator returns a coordinator in the cleared state.
func NewCoordinator() *Coordinator {
	return &Coordinator{}
}

// Register replaces the invitation with a new one. Guest count resets to
// zero and any share link is dropped; prior join progress is discarded.
func (c *Coordinator) Register(link string, expectedGuests int) {
	if expectedGuests < 0 {
		expectedGuests = 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.inviteLink = &link
	c.expectedGuests = expectedGuests
	c.guestCount = 0
	c.shareLink = nil
}

// Invite returns the current invite link, or nil when cleared.
func (c *Coordinator) Invite() *string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inviteLink
}

// ShareLink returns the current share link, or nil when not promoted.
func (c *Coordinator) ShareLink() *string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.shareLink
}

// GuestCount returns the current join count and the capacity.
func (c *Coordinator) GuestCount() (guests, expected int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.guestCount, c.expectedGuests
}

// Snapshot returns the whole record under a single lock acquisition.
func (c *Coordinator) Snapshot() Record {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Record{
		InviteLink:     c.inviteLink,
		ExpectedGuests: c.expectedGuests,
		GuestCount:     c.guestCount,
		ShareLink:      c.shareLink,
	}
}

// PromoteShareLink sets the share link from the registered invite link.
// It fails with ErrNoInvite when no invite is registered, and is
// idempotent when the share link is already set.
func (c *Coordinator) PromoteShareLink() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.inviteLink == nil {
		return ErrNoInvite
	}
	c.shareLink = c.inviteLink
	return nil
}

// Join admits one guest. The capacity check and the increment happen
// under one lock acquisition so concurrent joins cannot both observe a
// free slot and overshoot. Returns the new guest count on success.
func (c *Coordinator) Join() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.guestCount >= c.expectedGuests {
		return c.guestCount, ErrCapacityExceeded
	}

	c.guestCount++

	if c.guestCount > c.expectedGuests {
		return c.guestCount, fmt.Errorf("%w: count %d exceeds capacity %d",
			ErrInvariantViolation, c.guestCount, c.expectedGuests)
	}

	return c.guestCount, nil
}

// Clear resets the record to the cleared state. Always succeeds.
func (c *Coordinator) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.inviteLink = nil
	c.expectedGuests = 0
	c.guestCount = 0
	c.shareLink = nil
}
