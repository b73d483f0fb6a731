// Package schedule parses the five-field cron expressions used by daemon mode.
package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// searchLimit bounds Next. Leap days recur within it.
const searchLimit = 366 * 24 * time.Hour * 5

var descriptors = map[string]string{
	"@yearly":   "0 0 1 1 *",
	"@annually": "0 0 1 1 *",
	"@monthly":  "0 0 1 * *",
	"@weekly":   "0 0 * * 0",
	"@daily":    "0 0 * * *",
	"@midnight": "0 0 * * *",
	"@hourly":   "0 * * * *",
}

type CronSpec struct {
	expr   string
	minute fieldSet
	hour   fieldSet
	dom    fieldSet
	month  fieldSet
	dow    fieldSet
}

type fieldSet struct {
	any    bool
	values map[int]struct{}
}

// ParseCronSpec accepts "m h dom mon dow" or one of the @daily style
// descriptors.
func ParseCronSpec(expr string) (CronSpec, error) {
	expr = strings.TrimSpace(expr)
	fields := expr
	if strings.HasPrefix(expr, "@") {
		d, ok := descriptors[strings.ToLower(expr)]
		if !ok {
			return CronSpec{}, fmt.Errorf("unknown descriptor %q", expr)
		}
		fields = d
	}

	parts := strings.Fields(fields)
	if len(parts) != 5 {
		return CronSpec{}, fmt.Errorf("expected 5 fields")
	}

	minute, err := parseField(parts[0], 0, 59)
	if err != nil {
		return CronSpec{}, fmt.Errorf("minute: %w", err)
	}
	hour, err := parseField(parts[1], 0, 23)
	if err != nil {
		return CronSpec{}, fmt.Errorf("hour: %w", err)
	}
	dom, err := parseField(parts[2], 1, 31)
	if err != nil {
		return CronSpec{}, fmt.Errorf("day-of-month: %w", err)
	}
	month, err := parseField(parts[3], 1, 12)
	if err != nil {
		return CronSpec{}, fmt.Errorf("month: %w", err)
	}
	dow, err := parseField(parts[4], 0, 6)
	if err != nil {
		return CronSpec{}, fmt.Errorf("day-of-week: %w", err)
	}

	return CronSpec{
		expr:   expr,
		minute: minute,
		hour:   hour,
		dom:    dom,
		month:  month,
		dow:    dow,
	}, nil
}

func (s CronSpec) String() string { return s.expr }

func (s CronSpec) Matches(t time.Time) bool {
	return s.minute.has(t.Minute()) &&
		s.hour.has(t.Hour()) &&
		s.dom.has(t.Day()) &&
		s.month.has(int(t.Month())) &&
		s.dow.has(int(t.Weekday()))
}

// Next returns the first matching minute strictly after t, or the zero time
// when the spec can never fire (e.g. "0 0 31 2 *").
func (s CronSpec) Next(t time.Time) time.Time {
	cur := t.Truncate(time.Minute).Add(time.Minute)
	end := cur.Add(searchLimit)
	for cur.Before(end) {
		switch {
		case !s.month.has(int(cur.Month())):
			cur = time.Date(cur.Year(), cur.Month()+1, 1, 0, 0, 0, 0, cur.Location())
		case !s.dom.has(cur.Day()) || !s.dow.has(int(cur.Weekday())):
			cur = time.Date(cur.Year(), cur.Month(), cur.Day()+1, 0, 0, 0, 0, cur.Location())
		case !s.hour.has(cur.Hour()):
			cur = cur.Truncate(time.Hour).Add(time.Hour)
		case !s.minute.has(cur.Minute()):
			cur = cur.Add(time.Minute)
		default:
			return cur
		}
	}
	return time.Time{}
}

func (f fieldSet) has(v int) bool {
	if f.any {
		return true
	}
	_, ok := f.values[v]
	return ok
}

func parseField(token string, min, max int) (fieldSet, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return fieldSet{}, fmt.Errorf("empty field")
	}
	if token == "*" {
		return fieldSet{any: true}, nil
	}

	set := make(map[int]struct{})
	for _, part := range strings.Split(token, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			return fieldSet{}, fmt.Errorf("empty list element")
		}

		step := 1
		if i := strings.Index(part, "/"); i >= 0 {
			n, err := strconv.Atoi(part[i+1:])
			if err != nil || n <= 0 {
				return fieldSet{}, fmt.Errorf("invalid step %q", part)
			}
			step = n
			part = part[:i]
		}

		start, end := min, max
		switch {
		case part == "*":
		case strings.Contains(part, "-"):
			ends := strings.SplitN(part, "-", 2)
			a, errA := strconv.Atoi(strings.TrimSpace(ends[0]))
			b, errB := strconv.Atoi(strings.TrimSpace(ends[1]))
			if errA != nil || errB != nil {
				return fieldSet{}, fmt.Errorf("invalid range %q", part)
			}
			if a > b || a < min || b > max {
				return fieldSet{}, fmt.Errorf("range out of bounds %q", part)
			}
			start, end = a, b
		default:
			v, err := strconv.Atoi(part)
			if err != nil {
				return fieldSet{}, fmt.Errorf("invalid value %q", part)
			}
			if v < min || v > max {
				return fieldSet{}, fmt.Errorf("value out of bounds %d", v)
			}
			start = v
			if step == 1 {
				end = v
			}
		}

		for v := start; v <= end; v += step {
			set[v] = struct{}{}
		}
	}

	if len(set) == 0 {
		return fieldSet{}, fmt.Errorf("no values")
	}
	return fieldSet{values: set}, nil
}
