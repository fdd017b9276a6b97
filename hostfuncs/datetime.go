package hostfuncs

import (
	"context"
	"strings"
	"time"
)

// DateTimeRequest carries a timestamp in RFC 3339 form and optional
// formatting or arithmetic parameters.
type DateTimeRequest struct {
	Value     string  `json:"value,omitempty"`
	Other     string  `json:"other,omitempty"`
	Format    string  `json:"format,omitempty"`
	Zone      string  `json:"tz,omitempty"`
	Timestamp float64 `json:"timestamp,omitempty"`
	Seconds   float64 `json:"seconds,omitempty"`
}

// DateTimeResponse carries a timestamp.
type DateTimeResponse struct {
	Value     string  `json:"value"`
	Timestamp float64 `json:"timestamp"`
}

// DeltaResponse carries a duration in seconds.
type DeltaResponse struct {
	Seconds float64 `json:"seconds"`
}

// strftimeLayout translates strftime directives to a Go layout.
var strftimeLayout = map[byte]string{
	'Y': "2006", 'y': "06", 'm': "01", 'd': "02", 'H': "15", 'I': "03",
	'M': "04", 'S': "05", 'f': "000000", 'p': "PM", 'b': "Jan", 'B': "January",
	'a': "Mon", 'A': "Monday", 'z': "-0700", 'Z': "MST", 'j': "002",
}

func goLayout(format string) (string, error) {
	var b strings.Builder
	for i := 0; i < len(format); i++ {
		c := format[i]
		if c != '%' {
			b.WriteByte(c)
			continue
		}
		i++
		if i == len(format) {
			return "", argErrorf("stray %% at end of format")
		}
		if format[i] == '%' {
			b.WriteByte('%')
			continue
		}
		layout, ok := strftimeLayout[format[i]]
		if !ok {
			return "", argErrorf("unsupported directive %%%c", format[i])
		}
		b.WriteString(layout)
	}
	return b.String(), nil
}

func loadZone(name string) (*time.Location, error) {
	if name == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, argErrorf("unknown time zone %q", name)
	}
	return loc, nil
}

func parseISO(value string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05", time.DateOnly} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, argErrorf("invalid isoformat string: %q", value)
}

func dateTimeResponse(t time.Time) DateTimeResponse {
	return DateTimeResponse{
		Value:     t.Format(time.RFC3339Nano),
		Timestamp: float64(t.UnixNano()) / float64(time.Second),
	}
}

// DatetimeBundle returns the members of the datetime module. now is
// injectable for tests.
func DatetimeBundle(now func() time.Time) HostFuncBundle {
	if now == nil {
		now = time.Now
	}
	return NewBundle(map[string]ByteHandler{
		"now": NewJSONHandler(func(_ context.Context, req DateTimeRequest) (DateTimeResponse, error) {
			loc, err := loadZone(req.Zone)
			if err != nil {
				return DateTimeResponse{}, err
			}
			return dateTimeResponse(now().In(loc)), nil
		}),
		"utcnow": NewJSONHandler(func(context.Context, DateTimeRequest) (DateTimeResponse, error) {
			return dateTimeResponse(now().UTC()), nil
		}),
		"fromtimestamp": NewJSONHandler(func(_ context.Context, req DateTimeRequest) (DateTimeResponse, error) {
			loc, err := loadZone(req.Zone)
			if err != nil {
				return DateTimeResponse{}, err
			}
			sec := int64(req.Timestamp)
			nsec := int64((req.Timestamp - float64(sec)) * float64(time.Second))
			return dateTimeResponse(time.Unix(sec, nsec).In(loc)), nil
		}),
		"fromisoformat": NewJSONHandler(func(_ context.Context, req DateTimeRequest) (DateTimeResponse, error) {
			t, err := parseISO(req.Value)
			if err != nil {
				return DateTimeResponse{}, err
			}
			return dateTimeResponse(t), nil
		}),
		"strftime": NewJSONHandler(func(_ context.Context, req DateTimeRequest) (TextResponse, error) {
			t, err := parseISO(req.Value)
			if err != nil {
				return TextResponse{}, err
			}
			layout, err := goLayout(req.Format)
			if err != nil {
				return TextResponse{}, err
			}
			return TextResponse{Value: t.Format(layout)}, nil
		}),
		"strptime": NewJSONHandler(func(_ context.Context, req DateTimeRequest) (DateTimeResponse, error) {
			layout, err := goLayout(req.Format)
			if err != nil {
				return DateTimeResponse{}, err
			}
			t, err := time.Parse(layout, req.Value)
			if err != nil {
				return DateTimeResponse{}, argErrorf("time data %q does not match format %q", req.Value, req.Format)
			}
			return dateTimeResponse(t), nil
		}),
		"add": NewJSONHandler(func(_ context.Context, req DateTimeRequest) (DateTimeResponse, error) {
			t, err := parseISO(req.Value)
			if err != nil {
				return DateTimeResponse{}, err
			}
			return dateTimeResponse(t.Add(time.Duration(req.Seconds * float64(time.Second)))), nil
		}),
		"diff": NewJSONHandler(func(_ context.Context, req DateTimeRequest) (DeltaResponse, error) {
			a, err := parseISO(req.Value)
			if err != nil {
				return DeltaResponse{}, err
			}
			b, err := parseISO(req.Other)
			if err != nil {
				return DeltaResponse{}, err
			}
			return DeltaResponse{Seconds: a.Sub(b).Seconds()}, nil
		}),
	})
}

func datetimeModule() ModuleDef {
	return ModuleDef{
		Name:     "datetime",
		Doc:      "dates, times and deltas",
		New:      static(DatetimeBundle(nil)),
		Requests: requestsFor(DateTimeRequest{}, "now", "utcnow", "fromtimestamp", "fromisoformat", "strftime", "strptime", "add", "diff"),
	}
}

// SleepRequest pauses for Seconds.
type SleepRequest struct {
	Seconds float64 `json:"seconds"`
}

// ClockResponse carries a clock reading.
type ClockResponse struct {
	Seconds     float64 `json:"seconds"`
	Nanoseconds int64   `json:"nanoseconds"`
}

// maxSleep bounds time.sleep.
const maxSleep = time.Minute

// TimeBundle returns the members of the time module.
func TimeBundle() HostFuncBundle {
	start := time.Now()
	clock := func(t time.Time) ClockResponse {
		ns := t.UnixNano()
		return ClockResponse{Seconds: float64(ns) / float64(time.Second), Nanoseconds: ns}
	}
	return NewBundle(map[string]ByteHandler{
		"time": NewJSONHandler(func(context.Context, struct{}) (ClockResponse, error) {
			return clock(time.Now()), nil
		}),
		"monotonic": NewJSONHandler(func(context.Context, struct{}) (ClockResponse, error) {
			d := time.Since(start)
			return ClockResponse{Seconds: d.Seconds(), Nanoseconds: d.Nanoseconds()}, nil
		}),
		"sleep": NewJSONHandler(func(ctx context.Context, req SleepRequest) (struct{}, error) {
			if req.Seconds < 0 {
				return struct{}{}, argErrorf("sleep length must be non-negative")
			}
			d := time.Duration(req.Seconds * float64(time.Second))
			if d > maxSleep {
				return struct{}{}, argErrorf("sleep length exceeds %v", maxSleep)
			}
			timer := time.NewTimer(d)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return struct{}{}, ctx.Err()
			case <-timer.C:
				return struct{}{}, nil
			}
		}),
	})
}

func timeModule() ModuleDef {
	return ModuleDef{
		Name:     "time",
		Doc:      "clocks and sleeping",
		Requests: map[string]any{"sleep": SleepRequest{}},
		New: func(context.Context) (HostFuncBundle, error) {
			return TimeBundle(), nil
		},
	}
}

func requestsFor(model any, members ...string) map[string]any {
	m := make(map[string]any, len(members))
	for _, name := range members {
		m[name] = model
	}
	return m
}
