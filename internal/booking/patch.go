package booking

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"studio-booking-backend/internal/model"
)

// Optional is a patch field with three states: absent (leave unchanged),
// present-null (clear) and present-value (set).
type Optional[T any] struct {
	set   bool
	null  bool
	value T
}

// Some returns a present field holding v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{set: true, value: v}
}

// Null returns a present field that clears the column.
func Null[T any]() Optional[T] {
	return Optional[T]{set: true, null: true}
}

// IsSet reports whether the field was present.
func (o Optional[T]) IsSet() bool { return o.set }

// IsNull reports whether the field was present and null.
func (o Optional[T]) IsNull() bool { return o.set && o.null }

// Value returns the value and whether one was supplied.
func (o Optional[T]) Value() (T, bool) {
	return o.value, o.set && !o.null
}

// UnmarshalJSON marks the field present. JSON null becomes present-null.
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.null = true
		var zero T
		o.value = zero
		return nil
	}
	o.null = false
	return json.Unmarshal(data, &o.value)
}

// SessionPatch is a partial update to a class session.
type SessionPatch struct {
	Name     Optional[string]    `json:"name"`
	Room     Optional[string]    `json:"room"`
	StartsAt Optional[time.Time] `json:"starts_at"`
	EndsAt   Optional[time.Time] `json:"ends_at"`
	Capacity Optional[int]       `json:"capacity"`
}

// Empty reports whether no field is present.
func (p SessionPatch) Empty() bool {
	return !p.Name.IsSet() && !p.Room.IsSet() && !p.StartsAt.IsSet() &&
		!p.EndsAt.IsSet() && !p.Capacity.IsSet()
}

// MovesWindow reports whether the patch touches the time window.
func (p SessionPatch) MovesWindow() bool {
	return p.StartsAt.IsSet() || p.EndsAt.IsSet()
}

// Apply merges p into a copy of s. Only Room may be cleared; clearing any
// other field is rejected.
func (p SessionPatch) Apply(s model.ClassSession) (model.ClassSession, error) {
	out := s

	if err := applyRequired(p.Name, &out.Name, "name"); err != nil {
		return s, err
	}
	if err := applyRequired(p.StartsAt, &out.StartsAt, "starts_at"); err != nil {
		return s, err
	}
	if err := applyRequired(p.EndsAt, &out.EndsAt, "ends_at"); err != nil {
		return s, err
	}
	if err := applyRequired(p.Capacity, &out.Capacity, "capacity"); err != nil {
		return s, err
	}

	if p.Room.IsNull() {
		out.Room = nil
	} else if v, ok := p.Room.Value(); ok {
		out.Room = &v
	}

	out.StartsAt = out.StartsAt.UTC()
	out.EndsAt = out.EndsAt.UTC()

	if !out.StartsAt.Before(out.EndsAt) {
		return s, fmt.Errorf("starts_at must be before ends_at: %w", ErrInvalidPatch)
	}
	if out.Capacity < 0 {
		return s, fmt.Errorf("capacity must not be negative: %w", ErrInvalidPatch)
	}
	if out.Name == "" {
		return s, fmt.Errorf("name must not be empty: %w", ErrInvalidPatch)
	}
	return out, nil
}

func applyRequired[T any](o Optional[T], dst *T, field string) error {
	if o.IsNull() {
		return fmt.Errorf("%s cannot be cleared: %w", field, ErrInvalidPatch)
	}
	if v, ok := o.Value(); ok {
		*dst = v
	}
	return nil
}
