package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Veraticus/ledgerkeep/internal/model"
	"github.com/Veraticus/ledgerkeep/internal/service"
)

// claimLease holds back a one-shot trigger while it is delivered. If the
// process dies mid-delivery the trigger fires again once the lease ends.
const claimLease = 5 * time.Minute

// Store is an Installer that keeps pending triggers in the settings table,
// for hosts without a system notification scheduler. Due triggers are
// delivered by FireDue.
type Store struct {
	settings service.SettingsStore
	loc      *time.Location
	locker   Locker
	mu       sync.Mutex
}

// NewStore creates a trigger store. Daily repeats keep their wall-clock time
// in loc, or in the local time zone when loc is nil. FireDue takes locker,
// which must be the one given to Reminders; nil only guards this process.
func NewStore(settings service.SettingsStore, loc *time.Location, locker Locker) *Store {
	if loc == nil {
		loc = time.Local
	}
	if locker == nil {
		locker = newLocalLocker()
	}
	return &Store{settings: settings, loc: loc, locker: locker}
}

// Install adds a trigger, replacing any pending trigger with the same ID.
func (s *Store) Install(ctx context.Context, trigger Trigger) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending, err := s.load(ctx)
	if err != nil {
		return err
	}

	kept := pending[:0]
	for _, p := range pending {
		if p.ID != trigger.ID {
			kept = append(kept, p)
		}
	}
	return s.save(ctx, append(kept, trigger))
}

// CancelAll removes every pending trigger.
func (s *Store) CancelAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings.DeleteSetting(ctx, model.SettingNotificationTriggers)
}

// Pending returns the installed triggers.
func (s *Store) Pending(ctx context.Context) ([]Trigger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

// FireDue delivers every trigger due at now. Daily triggers move to their
// next occurrence after now; one-shot triggers are removed. A trigger whose
// delivery fails stays pending and is retried on the next call.
//
// Due triggers are claimed under the lock before delivery, so concurrent
// callers deliver each one once. Delivery runs without the lock, and a
// trigger cancelled or replaced meanwhile is not brought back.
func (s *Store) FireDue(ctx context.Context, now time.Time, deliver func(Trigger) error) (int, error) {
	claims, err := s.claimDue(ctx, now)
	if err != nil {
		return 0, err
	}

	var (
		fired     int
		errs      []error
		delivered []claim
		failed    []claim
	)
	for _, c := range claims {
		if err := deliver(c.trigger); err != nil {
			errs = append(errs, fmt.Errorf("failed to deliver %s: %w", c.trigger.ID, err))
			failed = append(failed, c)
			continue
		}
		fired++
		if c.trigger.Repeat != RepeatDaily {
			delivered = append(delivered, c)
		}
	}

	if len(delivered) > 0 || len(failed) > 0 {
		if err := s.settle(ctx, delivered, failed); err != nil {
			errs = append(errs, err)
		}
	}
	if fired > 0 {
		slog.Debug("fired reminders", "count", fired)
	}
	return fired, errors.Join(errs...)
}

// claim is a due trigger and the FireAt it was moved to while delivering.
type claim struct {
	trigger Trigger
	heldAt  time.Time
}

func (s *Store) claimDue(ctx context.Context, now time.Time) ([]claim, error) {
	unlock, err := s.locker.Lock(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to lock reminders: %w", err)
	}
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	pending, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	var claims []claim
	for i, trigger := range pending {
		if trigger.FireAt.After(now) {
			continue
		}

		heldAt := now.Add(claimLease)
		if trigger.Repeat == RepeatDaily {
			tod := model.TimeOfDayOf(trigger.FireAt.In(s.loc))
			heldAt = NextFireTime(tod, now.In(s.loc))
		}
		claims = append(claims, claim{trigger: trigger, heldAt: heldAt})
		pending[i].FireAt = heldAt
	}

	if len(claims) == 0 {
		return nil, nil
	}
	if err := s.save(ctx, pending); err != nil {
		return nil, err
	}
	return claims, nil
}

// settle removes delivered one-shot triggers and puts failed ones back at
// their due time. Only triggers still held by this call are touched.
func (s *Store) settle(ctx context.Context, delivered, failed []claim) error {
	unlock, err := s.locker.Lock(ctx)
	if err != nil {
		return fmt.Errorf("failed to lock reminders: %w", err)
	}
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	pending, err := s.load(ctx)
	if err != nil {
		return err
	}

	changed := false
	kept := pending[:0]
	for _, trigger := range pending {
		if _, ok := findClaim(delivered, trigger); ok {
			changed = true
			continue
		}
		if c, ok := findClaim(failed, trigger); ok {
			trigger.FireAt = c.trigger.FireAt
			changed = true
		}
		kept = append(kept, trigger)
	}

	if !changed {
		return nil
	}
	return s.save(ctx, kept)
}

func findClaim(claims []claim, trigger Trigger) (claim, bool) {
	for _, c := range claims {
		if c.trigger.ID == trigger.ID && c.heldAt.Equal(trigger.FireAt) {
			return c, true
		}
	}
	return claim{}, false
}

func (s *Store) load(ctx context.Context) ([]Trigger, error) {
	raw, ok, err := s.settings.GetSetting(ctx, model.SettingNotificationTriggers)
	if err != nil {
		return nil, err
	}
	if !ok || raw == "" {
		return []Trigger{}, nil
	}

	var triggers []Trigger
	if err := json.Unmarshal([]byte(raw), &triggers); err != nil {
		return nil, fmt.Errorf("failed to decode pending reminders: %w", err)
	}
	return triggers, nil
}

func (s *Store) save(ctx context.Context, triggers []Trigger) error {
	if len(triggers) == 0 {
		return s.settings.DeleteSetting(ctx, model.SettingNotificationTriggers)
	}
	data, err := json.Marshal(triggers)
	if err != nil {
		return fmt.Errorf("failed to encode pending reminders: %w", err)
	}
	return s.settings.SetSetting(ctx, model.SettingNotificationTriggers, string(data))
}
