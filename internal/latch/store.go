// FilePath: server/watchdog/internal/latch/store.go

// Package latch keeps the set of currently announced alerts.
package latch

import (
	"sync"
	"time"
)

// Key identifies a latched alert. Equality is (subject, kind) only.
type Key[S comparable, K comparable] struct {
	Subject S
	Kind    K
}

// Alert is a latched alert and the moment it becomes eligible for a reminder.
type Alert[S comparable, K comparable] struct {
	Subject     S
	Kind        K
	ResendAfter time.Time
}

// Key returns the identity of a.
func (a Alert[S, K]) Key() Key[S, K] {
	return Key[S, K]{Subject: a.Subject, Kind: a.Kind}
}

type entry struct {
	resendAfter time.Time
}

// Store maps (subject, kind) to a resend deadline. Every operation is atomic
// per key; operations on different keys never contend on a shared lock.
type Store[S comparable, K comparable] struct {
	entries sync.Map // Key[S, K] -> *entry
}

// NewStore creates an empty store.
func NewStore[S comparable, K comparable]() *Store[S, K] {
	return &Store[S, K]{}
}

// TryGet returns the resend deadline of a latched alert.
func (s *Store[S, K]) TryGet(subject S, kind K) (time.Time, bool) {
	v, ok := s.entries.Load(Key[S, K]{Subject: subject, Kind: kind})
	if !ok {
		return time.Time{}, false
	}
	return v.(*entry).resendAfter, true
}

// Upsert latches an alert or moves its resend deadline.
func (s *Store[S, K]) Upsert(subject S, kind K, resendAfter time.Time) {
	s.entries.Store(Key[S, K]{Subject: subject, Kind: kind}, &entry{resendAfter: resendAfter})
}

// Remove drops a latched alert. Removing an absent alert is a no-op.
func (s *Store[S, K]) Remove(subject S, kind K) {
	s.entries.Delete(Key[S, K]{Subject: subject, Kind: kind})
}

// RemoveExpired removes and returns every alert whose deadline is at or
// before now.
func (s *Store[S, K]) RemoveExpired(now time.Time) []Alert[S, K] {
	return s.RemoveExpiredWhere(now, nil)
}

// RemoveExpiredWhere is RemoveExpired restricted to keys accepted by match.
// A nil match accepts every key. An entry refreshed concurrently between the
// expiry check and the removal is left in place.
func (s *Store[S, K]) RemoveExpiredWhere(now time.Time, match func(Key[S, K]) bool) []Alert[S, K] {
	var removed []Alert[S, K]
	s.entries.Range(func(k, v any) bool {
		key := k.(Key[S, K])
		e := v.(*entry)
		if e.resendAfter.After(now) {
			return true
		}
		if match != nil && !match(key) {
			return true
		}
		if s.entries.CompareAndDelete(key, e) {
			removed = append(removed, Alert[S, K]{Subject: key.Subject, Kind: key.Kind, ResendAfter: e.resendAfter})
		}
		return true
	})
	return removed
}

// Snapshot returns the latched alerts as of the call.
func (s *Store[S, K]) Snapshot() []Alert[S, K] {
	var out []Alert[S, K]
	s.entries.Range(func(k, v any) bool {
		key := k.(Key[S, K])
		out = append(out, Alert[S, K]{Subject: key.Subject, Kind: key.Kind, ResendAfter: v.(*entry).resendAfter})
		return true
	})
	return out
}

// Len counts latched alerts.
func (s *Store[S, K]) Len() int {
	n := 0
	s.entries.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
