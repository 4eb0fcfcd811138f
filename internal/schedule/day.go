package schedule

import (
	"strconv"
	"strings"
	"time"
)

// Day is a day of week with Monday=0 and Sunday=6.
type Day int

const (
	Monday Day = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

var dayNames = [...]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

func (d Day) Valid() bool { return d >= Monday && d <= Sunday }

func (d Day) String() string {
	if !d.Valid() {
		return "Day(" + strconv.Itoa(int(d)) + ")"
	}
	return dayNames[d]
}

// Weekday converts to the time package numbering (Sunday=0).
func (d Day) Weekday() time.Weekday { return time.Weekday((int(d) + 1) % 7) }

// Days lists Monday through Sunday.
func Days() []Day { return []Day{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday} }

// ParseDay accepts "0".."6" or an English day name or its three letter prefix.
func ParseDay(s string) (Day, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(s); err == nil {
		d := Day(n)
		return d, d.Valid()
	}
	for i, name := range dayNames {
		name = strings.ToLower(name)
		if s == name || (len(s) >= 3 && strings.HasPrefix(name, s)) {
			return Day(i), true
		}
	}
	return 0, false
}
