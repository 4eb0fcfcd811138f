package scheduler

import (
	"sort"
	"time"
)

func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	snap := Snapshot{Enabled: s.cfg.Enabled, Running: s.c != nil, Timezone: s.cfg.Timezone}
	if s.loc != nil {
		snap.Timezone = s.loc.String()
	}
	for _, d := range s.defs {
		it := ScheduleInfo{Name: d.name, Spec: d.spec, Timeout: d.timeout}
		if s.c != nil && d.entryID != 0 {
			e := s.c.Entry(d.entryID)
			it.Next, it.Prev = e.Next, e.Prev
		}
		snap.Schedules = append(snap.Schedules, it)
	}
	eng := s.engine
	s.mu.Unlock()

	sort.Slice(snap.Schedules, func(i, j int) bool {
		a, b := snap.Schedules[i].Next, snap.Schedules[j].Next
		if a.Equal(b) {
			return snap.Schedules[i].Name < snap.Schedules[j].Name
		}
		return zeroLast(a).Before(zeroLast(b))
	})
	if eng != nil {
		snap.Engine = eng.Snapshot()
	}
	return snap
}

func zeroLast(t time.Time) time.Time {
	if t.IsZero() {
		return time.Unix(1<<62, 0)
	}
	return t
}
