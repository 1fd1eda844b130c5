package meta

import (
	"github.com/roach88/kforge/internal/device"
)

// Schedule is the configuration shared by the tasks of one schedule.
type Schedule struct {
	*record
	manual *device.Index
}

// NewSchedule reads and validates the settings of schedule id.
func NewSchedule(id string, props Properties) (*Schedule, error) {
	r, err := newRecord(id, props)
	if err != nil {
		return nil, err
	}
	return &Schedule{record: r}, nil
}

// ID returns the schedule id.
func (s *Schedule) ID() string { return s.id }

// SetDevice pins every task of the schedule that has no manual device of
// its own to idx.
func (s *Schedule) SetDevice(idx device.Index) { s.manual = &idx }

// IsDeviceManuallySet reports whether SetDevice pinned the schedule.
func (s *Schedule) IsDeviceManuallySet() bool { return s.manual != nil }

// Lookup returns the schedule's value for suffix.
func (s *Schedule) Lookup(suffix string) string {
	if v, ok := s.explicit[suffix]; ok {
		return v
	}
	return s.fallback[suffix]
}
