package builtin

import (
	"fmt"
	"time"

	"reld/execctx"
	"reld/opregistry"
	"reld/rtype"
	"reld/value"
)

func checkMonth(ctx *execctx.Context, m int64) error {
	if m < 1 || m > 12 {
		return raiseError(ctx, execctx.ErrTypeConstraintViolation, "datetime: month")
	}
	return nil
}

// isLeapYear applies the Gregorian leap-year rule.
func isLeapYear(y int64) bool {
	if y%400 == 0 {
		return true
	}
	return y%4 == 0 && y%100 != 0
}

// checkDay validates the day-of-month, applying the Gregorian leap rule
// for years >= 1924 and a plain "divisible by 4" Julian rule for years
// before 1924 — matching the original engine exactly (spec §6.4:
// "Datetime constructor validates ... day (with a pre-1924 Julian leap
// rule)").
func checkDay(ctx *execctx.Context, y, m, d int64) error {
	var days int64
	switch m {
	case 1, 3, 5, 7, 8, 10, 12:
		days = 31
	case 4, 6, 9, 11:
		days = 30
	case 2:
		if y < 1924 {
			if y%4 == 0 {
				days = 29
			} else {
				days = 28
			}
		} else if isLeapYear(y) {
			days = 29
		} else {
			days = 28
		}
	default:
		return raiseError(ctx, execctx.ErrTypeConstraintViolation, "datetime: month")
	}
	if d < 1 || d > days {
		return raiseError(ctx, execctx.ErrTypeConstraintViolation, "datetime: day")
	}
	return nil
}

func checkHour(ctx *execctx.Context, h int64) error {
	if h < 0 || h > 23 {
		return raiseError(ctx, execctx.ErrTypeConstraintViolation, "datetime: hour")
	}
	return nil
}

func checkMinute(ctx *execctx.Context, m int64) error {
	if m < 0 || m > 59 {
		return raiseError(ctx, execctx.ErrTypeConstraintViolation, "datetime: minute")
	}
	return nil
}

func checkSecond(ctx *execctx.Context, s int64) error {
	// Upper bound of 60, not 59, to admit a leap second the same way the
	// original validator does.
	if s < 0 || s > 60 {
		return raiseError(ctx, execctx.ErrTypeConstraintViolation, "datetime: second")
	}
	return nil
}

func registerDatetime(reg *opregistry.Registry) {
	sixInts := []rtype.Handle{rtype.HandleInteger, rtype.HandleInteger, rtype.HandleInteger, rtype.HandleInteger, rtype.HandleInteger, rtype.HandleInteger}
	reg.Register(&opregistry.OpEntry{Name: "datetime", Params: sixInts, Returns: rtype.HandleDatetime, Kind: opregistry.KindNative, Fn: datetimeSelector})

	dtOnly := []rtype.Handle{rtype.HandleDatetime}
	getters := []struct {
		name string
		get  func(value.Datetime) int64
	}{
		{"year", func(dt value.Datetime) int64 { return int64(dt.Year) }},
		{"month", func(dt value.Datetime) int64 { return int64(dt.Month) }},
		{"day", func(dt value.Datetime) int64 { return int64(dt.Day) }},
		{"hour", func(dt value.Datetime) int64 { return int64(dt.Hour) }},
		{"minute", func(dt value.Datetime) int64 { return int64(dt.Minute) }},
		{"second", func(dt value.Datetime) int64 { return int64(dt.Second) }},
	}
	for _, g := range getters {
		g := g
		reg.Register(&opregistry.OpEntry{Name: g.name, Params: dtOnly, Returns: rtype.HandleInteger, Kind: opregistry.KindNative,
			Fn: func(_ *execctx.Context, args []interface{}) (interface{}, error) {
				return g.get(args[0].(value.Datetime)), nil
			}})
	}

	setters := []struct {
		name string
		set  func(*value.Datetime, int64)
		check func(*execctx.Context, int64) error
	}{
		{"set_year", func(dt *value.Datetime, v int64) { dt.Year = int(v) }, nil},
		{"set_month", func(dt *value.Datetime, v int64) { dt.Month = int(v) }, checkMonth},
		{"set_day", func(dt *value.Datetime, v int64) { dt.Day = int(v) }, nil},
		{"set_hour", func(dt *value.Datetime, v int64) { dt.Hour = int(v) }, checkHour},
		{"set_minute", func(dt *value.Datetime, v int64) { dt.Minute = int(v) }, checkMinute},
		{"set_second", func(dt *value.Datetime, v int64) { dt.Second = int(v) }, checkSecond},
	}
	for _, st := range setters {
		st := st
		reg.Register(&opregistry.OpEntry{Name: st.name, Params: []rtype.Handle{rtype.HandleDatetime, rtype.HandleInteger}, Returns: rtype.HandleDatetime, Kind: opregistry.KindNative,
			Fn: func(ctx *execctx.Context, args []interface{}) (interface{}, error) {
				dt := args[0].(value.Datetime)
				v := args[1].(int64)
				if st.check != nil {
					if err := st.check(ctx, v); err != nil {
						return nil, err
					}
				}
				st.set(&dt, v)
				if st.name == "set_day" {
					if err := checkDay(ctx, int64(dt.Year), int64(dt.Month), int64(dt.Day)); err != nil {
						return nil, err
					}
				}
				return dt, nil
			}})
	}

	reg.Register(&opregistry.OpEntry{Name: "now", Params: nil, Returns: rtype.HandleDatetime, Kind: opregistry.KindNative,
		Fn: func(_ *execctx.Context, _ []interface{}) (interface{}, error) { return fromTime(time.Now()), nil }})
	reg.Register(&opregistry.OpEntry{Name: "now_utc", Params: nil, Returns: rtype.HandleDatetime, Kind: opregistry.KindNative,
		Fn: func(_ *execctx.Context, _ []interface{}) (interface{}, error) { return fromTime(time.Now().UTC()), nil }})

	reg.Register(&opregistry.OpEntry{Name: "add_seconds", Params: []rtype.Handle{rtype.HandleDatetime, rtype.HandleInteger}, Returns: rtype.HandleDatetime, Kind: opregistry.KindNative,
		Fn: func(_ *execctx.Context, args []interface{}) (interface{}, error) {
			dt := args[0].(value.Datetime)
			seconds := args[1].(int64)
			t := toTime(dt).Add(time.Duration(seconds) * time.Second)
			return fromTime(t), nil
		}})

	reg.Register(&opregistry.OpEntry{Name: "cast_as_string", Params: dtOnly, Returns: rtype.HandleString, Kind: opregistry.KindNative,
		Fn: func(_ *execctx.Context, args []interface{}) (interface{}, error) {
			dt := args[0].(value.Datetime)
			return fmt.Sprintf("%04d-%02d-%02dT%02d:%02d:%02d", dt.Year, dt.Month, dt.Day, dt.Hour, dt.Minute, dt.Second), nil
		}})
}

func datetimeSelector(ctx *execctx.Context, args []interface{}) (interface{}, error) {
	y, m, d, h, mi, s := args[0].(int64), args[1].(int64), args[2].(int64), args[3].(int64), args[4].(int64), args[5].(int64)
	if err := checkMonth(ctx, m); err != nil {
		return nil, err
	}
	if err := checkDay(ctx, y, m, d); err != nil {
		return nil, err
	}
	if err := checkHour(ctx, h); err != nil {
		return nil, err
	}
	if err := checkMinute(ctx, mi); err != nil {
		return nil, err
	}
	if err := checkSecond(ctx, s); err != nil {
		return nil, err
	}
	return value.Datetime{Year: int(y), Month: int(m), Day: int(d), Hour: int(h), Minute: int(mi), Second: int(s)}, nil
}

func fromTime(t time.Time) value.Datetime {
	return value.Datetime{Year: t.Year(), Month: int(t.Month()), Day: t.Day(), Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}
}

func toTime(dt value.Datetime) time.Time {
	return time.Date(dt.Year, time.Month(dt.Month), dt.Day, dt.Hour, dt.Minute, dt.Second, 0, time.Local)
}
