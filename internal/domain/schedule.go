package domain

import (
	"fmt"
	"strings"
)

// ScheduledSlot is a trip slot bound to a shuttle, flattened for conflict checks.
type ScheduledSlot struct {
	TripID    string
	TripName  string
	SlotID    string
	ShuttleID string
	Start     ClockTime
	End       ClockTime
}

// Overlaps reports whether two slots share any minute. Touching windows
// (one ends at 09:00, the next starts at 09:00) do not overlap.
func (s ScheduledSlot) Overlaps(o ScheduledSlot) bool {
	return s.Start < o.End && o.Start < s.End
}

// SlotConflict is a pair of slots that put one shuttle in two places.
type SlotConflict struct {
	Proposed ScheduledSlot
	Existing ScheduledSlot
}

// FlattenSlots turns the shuttle-bound slots of a trip into ScheduledSlots.
// Slots without a shuttle never conflict and are skipped.
func FlattenSlots(t *Trip) ([]ScheduledSlot, error) {
	out := make([]ScheduledSlot, 0, len(t.Slots))
	for _, s := range t.Slots {
		if s.ShuttleID == "" {
			continue
		}
		start, end, err := s.Window()
		if err != nil {
			return nil, err
		}
		out = append(out, ScheduledSlot{
			TripID:    t.ID,
			TripName:  t.Name,
			SlotID:    s.ID,
			ShuttleID: s.ShuttleID,
			Start:     start,
			End:       end,
		})
	}
	return out, nil
}

// FindSlotConflicts returns every overlap between proposed slots and existing
// slots on the same shuttle, and between proposed slots themselves. Slots are
// daily, so any time overlap is a same-day overlap.
func FindSlotConflicts(proposed, existing []ScheduledSlot) []SlotConflict {
	var conflicts []SlotConflict
	for i, p := range proposed {
		for _, e := range existing {
			if p.ShuttleID == e.ShuttleID && p.Overlaps(e) {
				conflicts = append(conflicts, SlotConflict{Proposed: p, Existing: e})
			}
		}
		for _, q := range proposed[i+1:] {
			if p.ShuttleID == q.ShuttleID && p.Overlaps(q) {
				conflicts = append(conflicts, SlotConflict{Proposed: q, Existing: p})
			}
		}
	}
	return conflicts
}

// SchedulingConflictError aggregates all slot conflicts of one request so the
// caller can fix them in a single pass.
type SchedulingConflictError struct {
	Conflicts []string
}

// Error renders a header followed by a numbered list, one conflict per line.
func (e *SchedulingConflictError) Error() string {
	var b strings.Builder
	b.WriteString("Scheduling conflicts detected:")
	for i, c := range e.Conflicts {
		fmt.Fprintf(&b, "\n%d. %s", i+1, c)
	}
	return b.String()
}

// Is makes errors.Is(err, ErrSchedulingConflict) match.
func (e *SchedulingConflictError) Is(target error) bool {
	return target == ErrSchedulingConflict
}

// NewSchedulingConflictError describes each conflict using label to name shuttles.
func NewSchedulingConflictError(conflicts []SlotConflict, label func(shuttleID string) string) *SchedulingConflictError {
	lines := make([]string, 0, len(conflicts))
	for _, c := range conflicts {
		lines = append(lines, fmt.Sprintf(
			"Shuttle %s: %s-%s on %q overlaps %s-%s on %q",
			label(c.Proposed.ShuttleID),
			c.Proposed.Start, c.Proposed.End, c.Proposed.TripName,
			c.Existing.Start, c.Existing.End, c.Existing.TripName,
		))
	}
	return &SchedulingConflictError{Conflicts: lines}
}
