// FilePath: server/watchdog/internal/alerting/evaluator.go

// Package alerting decides when abnormal conditions start, are re-announced
// and end. One generic Evaluator reconciles the current truth reported by a
// Family against a latch store; the families differ only in how they compute
// that truth.
package alerting

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/itsatony/w4b_v3/server/watchdog/internal/latch"
	nuts "github.com/vaudience/go-nuts"
)

// ErrFetch marks a failed domain snapshot fetch. The tick is abandoned and
// latch state is left untouched.
var ErrFetch = errors.New("alerting: snapshot fetch failed")

// Label is the underlying type of subjects and kinds.
type Label interface {
	~string
}

// Observation is the current truth of one condition. Inactive observations
// carry clearing evidence used as the clear payload.
type Observation[P any] struct {
	Active  bool
	Payload P
}

// Observations maps conditions to their current truth. Conditions absent from
// the map are false.
type Observations[S Label, K Label, P any] map[latch.Key[S, K]]Observation[P]

// Set records an observation.
func (o Observations[S, K, P]) Set(subject S, kind K, active bool, payload P) {
	o[latch.Key[S, K]{Subject: subject, Kind: kind}] = Observation[P]{Active: active, Payload: payload}
}

// Family computes the current truth of its conditions. latched reports whether
// a condition is announced right now, which lets a family apply different
// logic for raising and clearing.
type Family[S Label, K Label, P any] interface {
	Name() string
	Observe(ctx context.Context, now time.Time, latched func(latch.Key[S, K]) bool) (Observations[S, K, P], error)
}

// LatchedAlert is a family-independent view of a latched alert.
type LatchedAlert struct {
	Family      string    `json:"family"`
	Subject     string    `json:"subject"`
	Kind        string    `json:"kind"`
	ResendAfter time.Time `json:"resend_after"`
}

// Evaluator runs the clear, expiry and raise passes for one family.
type Evaluator[S Label, K Label, P any] struct {
	family   Family[S, K, P]
	store    *latch.Store[S, K]
	sink     Sink
	cooldown time.Duration
	recorder Recorder
}

// EvaluatorOption customizes an Evaluator.
type EvaluatorOption[S Label, K Label, P any] func(*Evaluator[S, K, P])

// WithRecorder assigns a metrics recorder.
func WithRecorder[S Label, K Label, P any](r Recorder) EvaluatorOption[S, K, P] {
	return func(e *Evaluator[S, K, P]) {
		if r != nil {
			e.recorder = r
		}
	}
}

// NewEvaluator constructs an evaluator. The store is owned by the caller and
// outlives individual evaluations.
func NewEvaluator[S Label, K Label, P any](family Family[S, K, P], store *latch.Store[S, K], sink Sink, cooldown time.Duration, opts ...EvaluatorOption[S, K, P]) (*Evaluator[S, K, P], error) {
	if family == nil {
		return nil, errors.New("alerting: nil family")
	}
	if store == nil {
		return nil, errors.New("alerting: nil latch store")
	}
	if sink == nil {
		return nil, errors.New("alerting: nil sink")
	}
	if cooldown <= 0 {
		return nil, fmt.Errorf("alerting: cooldown must be positive, got %s", cooldown)
	}
	e := &Evaluator[S, K, P]{
		family:   family,
		store:    store,
		sink:     sink,
		cooldown: cooldown,
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Name returns the family name.
func (e *Evaluator[S, K, P]) Name() string {
	return e.family.Name()
}

// Evaluate fetches the family's current truth and reconciles it with the
// latch store. On a fetch failure nothing is raised or cleared.
func (e *Evaluator[S, K, P]) Evaluate(ctx context.Context, now time.Time) ([]Notification, error) {
	started := time.Now()
	observed, err := e.family.Observe(ctx, now, e.isLatched)
	if err != nil {
		e.recorder.EvaluationFailed(e.Name())
		return nil, fmt.Errorf("%w: %s: %v", ErrFetch, e.Name(), err)
	}
	events := e.Reconcile(ctx, now, observed, nil)
	e.recorder.EvaluationCompleted(e.Name(), time.Since(started), e.store.Len())
	return events, nil
}

// Reconcile applies observed to the latch store within scope and dispatches
// the resulting notifications. A nil scope covers every condition. Latched
// conditions outside scope are neither cleared nor expired.
func (e *Evaluator[S, K, P]) Reconcile(ctx context.Context, now time.Time, observed Observations[S, K, P], scope func(latch.Key[S, K]) bool) []Notification {
	inScope := func(k latch.Key[S, K]) bool { return scope == nil || scope(k) }
	var events []Notification

	// Clear pass runs first so that a condition that flipped within one
	// reconcile shows up as a clear followed by a raise.
	for _, a := range e.store.Snapshot() {
		k := a.Key()
		if !inScope(k) {
			continue
		}
		obs, ok := observed[k]
		if ok && obs.Active {
			continue
		}
		e.store.Remove(k.Subject, k.Kind)
		var payload any
		if ok {
			payload = obs.Payload
		}
		events = append(events, e.newNotification(EventClear, k, payload, now, false))
	}

	expired := make(map[latch.Key[S, K]]bool)
	for _, a := range e.store.RemoveExpiredWhere(now, inScope) {
		expired[a.Key()] = true
	}

	for _, k := range sortedKeys(observed) {
		obs := observed[k]
		if !obs.Active || !inScope(k) {
			continue
		}
		if _, latched := e.store.TryGet(k.Subject, k.Kind); latched {
			continue
		}
		e.store.Upsert(k.Subject, k.Kind, now.Add(e.cooldown))
		events = append(events, e.newNotification(EventRaise, k, obs.Payload, now, expired[k]))
	}

	e.dispatch(ctx, events)
	return events
}

// Latched lists the alerts currently latched for this family.
func (e *Evaluator[S, K, P]) Latched() []LatchedAlert {
	snapshot := e.store.Snapshot()
	out := make([]LatchedAlert, 0, len(snapshot))
	for _, a := range snapshot {
		out = append(out, LatchedAlert{
			Family:      e.Name(),
			Subject:     string(a.Subject),
			Kind:        string(a.Kind),
			ResendAfter: a.ResendAfter,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Subject != out[j].Subject {
			return out[i].Subject < out[j].Subject
		}
		return out[i].Kind < out[j].Kind
	})
	return out
}

// Notify sends a notification that is not tied to a latch, such as bad input.
func (e *Evaluator[S, K, P]) Notify(ctx context.Context, n Notification) {
	if n.Family == "" {
		n.Family = e.Name()
	}
	e.dispatch(ctx, []Notification{n})
}

func (e *Evaluator[S, K, P]) isLatched(k latch.Key[S, K]) bool {
	_, ok := e.store.TryGet(k.Subject, k.Kind)
	return ok
}

func (e *Evaluator[S, K, P]) newNotification(t EventType, k latch.Key[S, K], payload any, now time.Time, reminder bool) Notification {
	return Notification{
		ID:       nuts.NID("ntf", 12),
		Type:     t,
		Family:   e.Name(),
		Subject:  string(k.Subject),
		Kind:     string(k.Kind),
		Reminder: reminder,
		At:       now,
		Payload:  payload,
	}
}

// dispatch delivers events in order. Latch state has already been updated;
// a failing sink does not cause the condition to be raised again.
func (e *Evaluator[S, K, P]) dispatch(ctx context.Context, events []Notification) {
	for _, n := range events {
		e.recorder.NotificationEmitted(e.Name(), n.Type, n.Reminder)
		if err := e.sink.Notify(ctx, n); err != nil {
			e.recorder.NotificationFailed(e.Name())
			nuts.L.Errorf("[Evaluator:%s] Failed to deliver %s %s/%s (%s): %v", e.Name(), n.Type, n.Subject, n.Kind, n.ID, err)
			continue
		}
		nuts.L.Infof("[Evaluator:%s] %s %s/%s reminder=%t", e.Name(), n.Type, n.Subject, n.Kind, n.Reminder)
	}
}

func sortedKeys[S Label, K Label, P any](observed Observations[S, K, P]) []latch.Key[S, K] {
	keys := make([]latch.Key[S, K], 0, len(observed))
	for k := range observed {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Subject != keys[j].Subject {
			return keys[i].Subject < keys[j].Subject
		}
		return keys[i].Kind < keys[j].Kind
	})
	return keys
}
