// Package schedule defines the scheduled-message model shared by the store,
// the conversation flow and the recurring scheduler.
package schedule

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Target labels used when the destination has no better description.
const (
	LabelSelf   = "Yourself"
	LabelCustom = "Custom"
)

// Definition is one persisted weekly message.
type Definition struct {
	ID           int64
	OwnerID      int64
	OriginChatID int64
	Body         string
	Day          Day
	Hour         int
	Minute       int
	TargetID     string
	TargetLabel  string
	CreatedAt    time.Time
}

var (
	ErrEmptyBody   = errors.New("schedule: empty body")
	ErrBadDay      = errors.New("schedule: day out of range")
	ErrBadHour     = errors.New("schedule: hour out of range")
	ErrBadMinute   = errors.New("schedule: minute out of range")
	ErrEmptyTarget = errors.New("schedule: empty target")
)

// Validate reports the first field that is out of bounds.
func (d Definition) Validate() error {
	switch {
	case strings.TrimSpace(d.Body) == "":
		return ErrEmptyBody
	case !d.Day.Valid():
		return fmt.Errorf("%w: %d", ErrBadDay, int(d.Day))
	case !ValidHour(d.Hour):
		return fmt.Errorf("%w: %d", ErrBadHour, d.Hour)
	case !ValidMinute(d.Minute):
		return fmt.Errorf("%w: %d", ErrBadMinute, d.Minute)
	case strings.TrimSpace(d.TargetID) == "":
		return ErrEmptyTarget
	}
	return nil
}

// Clock returns the time of day as HH:MM.
func (d Definition) Clock() string { return FormatClock(d.Hour, d.Minute) }

func ValidHour(h int) bool   { return h >= 0 && h <= 23 }
func ValidMinute(m int) bool { return m >= 0 && m <= 59 }

func FormatClock(hour, minute int) string { return fmt.Sprintf("%02d:%02d", hour, minute) }

// DeliveryError is returned by a Gateway when a send did not go through.
type DeliveryError struct {
	Detail string
	Err    error
}

func (e *DeliveryError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "delivery failed"
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// ErrorDetail extracts the user-facing detail of a delivery failure.
func ErrorDetail(err error) string {
	if err == nil {
		return ""
	}
	var de *DeliveryError
	if errors.As(err, &de) {
		return de.Error()
	}
	return err.Error()
}
