package meta

import (
	"strconv"
)

// Source tells where a resolved value came from.
type Source uint8

const (
	SourceDefault Source = iota
	SourceSchedule
	SourceTask
)

func (s Source) String() string {
	switch s {
	case SourceSchedule:
		return "schedule"
	case SourceTask:
		return "task"
	}
	return "default"
}

// Entry is one resolved setting.
type Entry struct {
	Suffix string
	Value  string
	Source Source
}

// record holds the validated values read for one id. Definedness is the
// presence of a suffix in explicit, fixed at construction.
type record struct {
	id       string
	explicit map[string]string
	fallback map[string]string
}

func newRecord(id string, props Properties) (*record, error) {
	r := &record{
		id:       id,
		explicit: make(map[string]string),
		fallback: make(map[string]string, len(settings)),
	}
	for _, s := range settings {
		key := id + "." + s.suffix
		if v, ok := props.Get(key); ok {
			if err := validate(key, v, s); err != nil {
				return nil, err
			}
			r.explicit[s.suffix] = v
		}
		def := s.def
		if v, ok := props.Get(DefaultPrefix + "." + s.suffix); ok {
			if err := validate(DefaultPrefix+"."+s.suffix, v, s); err != nil {
				return nil, err
			}
			def = v
		}
		r.fallback[s.suffix] = def
	}
	return r, nil
}

func validate(key, value string, s setting) error {
	if s.check == nil {
		return nil
	}
	if reason := s.check(value); reason != "" {
		return &ConfigError{Key: key, Value: value, Reason: reason}
	}
	return nil
}

func (r *record) isDefined(suffix string) bool {
	_, ok := r.explicit[suffix]
	return ok
}

// The parse helpers run on validated values only.

func asBool(s string) bool {
	b, _ := strconv.ParseBool(s)
	return b
}

func asInt(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func asDims(s string) []int {
	if s == "" {
		return nil
	}
	d, _ := parseDims(s)
	return d
}
