package calc

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

const (
	isoDate     = "2006-01-02"
	isoDateTime = "2006-01-02 15:04:05"
	secondsDay  = 86400
	maxWorkdays = 1 << 20
	maxSerial   = 2958465 // 9999-12-31
)

// excelEpoch is day 0 of the spreadsheet serial calendar.
var excelEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// parseISODate parses a strict YYYY-MM-DD date.
func parseISODate(s string) (time.Time, bool) {
	if len(s) != len(isoDate) {
		return time.Time{}, false
	}
	t, err := time.Parse(isoDate, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// dateToSerial returns the serial day number of the date part of t.
func dateToSerial(t time.Time) float64 {
	y, m, d := t.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return float64((day.Unix() - excelEpoch.Unix()) / secondsDay)
}

func serialToDate(serial float64) time.Time {
	return excelEpoch.AddDate(0, 0, toInt(math.Floor(serial)))
}

func formatDate(t time.Time) string {
	return t.Format(isoDate)
}

// dateArg converts a date argument: ISO text first, then any other textual
// date dateparse understands (in the evaluator's zone). Numbers and
// numeric text are serial day numbers.
func (e *Evaluator) dateArg(name string, v Value) (time.Time, error) {
	switch v.Type {
	case ValueText:
		if t, ok := parseISODate(v.Str); ok {
			return t, nil
		}
		if n, err := strconv.ParseFloat(v.Str, 64); err == nil {
			return serialDateArg(name, n)
		}
		t, err := dateparse.ParseIn(strings.TrimSpace(v.Str), e.location)
		if err != nil {
			return time.Time{}, NewEvalError(ErrorKindTypeMismatch, "%s: Invalid date format: '%s'", name, v.Str)
		}
		y, m, d := t.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
	case ValueNumber:
		return serialDateArg(name, v.Num)
	}
	return time.Time{}, NewEvalError(ErrorKindTypeMismatch, "%s: Expected date string or serial number, got %s", name, describe(v))
}

func serialDateArg(name string, serial float64) (time.Time, error) {
	if !(math.Abs(serial) <= maxSerial) {
		return time.Time{}, NewEvalError(ErrorKindDomain, "%s: date serial %s out of range", name, formatNumber(serial))
	}
	return serialToDate(serial), nil
}

// addMonths moves t by months, clamping the day to the end of the target
// month (Jan 31 + 1 month is Feb 28 or 29).
func addMonths(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(months), 1, 0, 0, 0, 0, time.UTC)
	return first.AddDate(0, 0, min(d, daysIn(first))-1)
}

func daysIn(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func daysBetween(start, end time.Time) int {
	return toInt(dateToSerial(end) - dateToSerial(start))
}

func isLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

func (e *Evaluator) fnToday(args []Value) (Value, error) {
	if err := requireArgs("TODAY", len(args), 0); err != nil {
		return Null, err
	}
	return Text(e.clock.Now().In(e.location).Format(isoDate)), nil
}

func (e *Evaluator) fnNow(args []Value) (Value, error) {
	if err := requireArgs("NOW", len(args), 0); err != nil {
		return Null, err
	}
	return Text(e.clock.Now().In(e.location).Format(isoDateTime)), nil
}

// fnDate returns the serial number of DATE(year, month, day). Months and
// days outside their range roll over into neighbouring periods.
func fnDate(args []Value) (Value, error) {
	if err := requireArgs("DATE", len(args), 3); err != nil {
		return Null, err
	}
	nums, err := numberArgs("DATE", args)
	if err != nil {
		return Null, err
	}
	t := time.Date(toInt(nums[0]), time.Month(toInt(nums[1])), toInt(nums[2]), 0, 0, 0, 0, time.UTC)
	return Number(dateToSerial(t)), nil
}

// fnTime returns the fraction of a day.
func fnTime(args []Value) (Value, error) {
	if err := requireArgs("TIME", len(args), 3); err != nil {
		return Null, err
	}
	nums, err := numberArgs("TIME", args)
	if err != nil {
		return Null, err
	}
	seconds := toInt(nums[0])*3600 + toInt(nums[1])*60 + toInt(nums[2])
	return Number(float64(seconds) / secondsDay), nil
}

func (e *Evaluator) dateComponent(name string, part func(time.Time) int) valueFunc {
	return func(args []Value) (Value, error) {
		if err := requireArgs(name, len(args), 1); err != nil {
			return Null, err
		}
		t, err := e.dateArg(name, args[0])
		if err != nil {
			return Null, err
		}
		return Number(float64(part(t))), nil
	}
}

// timeComponent builds HOUR (0), MINUTE (1) and SECOND (2). It accepts
// "YYYY-MM-DD HH:MM:SS", "HH:MM:SS" or a day fraction.
func timeComponent(name string, field int) valueFunc {
	return func(args []Value) (Value, error) {
		if err := requireArgs(name, len(args), 1); err != nil {
			return Null, err
		}
		seconds, ok := secondsOfDay(args[0])
		if !ok {
			return Null, NewEvalError(ErrorKindTypeMismatch, "%s: Could not parse time", name)
		}
		switch field {
		case 0:
			return Number(float64(seconds / 3600)), nil
		case 1:
			return Number(float64(seconds / 60 % 60)), nil
		}
		return Number(float64(seconds % 60)), nil
	}
}

func secondsOfDay(v Value) (int, bool) {
	text := v.AsText()
	if _, clock, found := strings.Cut(text, " "); found {
		text = clock
	}
	if t, err := time.Parse("15:04:05", text); err == nil {
		return t.Hour()*3600 + t.Minute()*60 + t.Second(), true
	}
	if v.Type == ValueText {
		return 0, false
	}
	n, ok := v.AsNumber()
	if !ok {
		return 0, false
	}
	_, frac := math.Modf(n)
	return int(math.Round(frac * secondsDay)), true
}

// fnDays is DAYS(end, start).
func (e *Evaluator) fnDays(args []Value) (Value, error) {
	if err := requireArgs("DAYS", len(args), 2); err != nil {
		return Null, err
	}
	end, err := e.dateArg("DAYS", args[0])
	if err != nil {
		return Null, err
	}
	start, err := e.dateArg("DAYS", args[1])
	if err != nil {
		return Null, err
	}
	return Number(float64(daysBetween(start, end))), nil
}

// fnWeekday numbers days Sunday=1 (type 1), Monday=1 (type 2) or
// Monday=0 (type 3).
func (e *Evaluator) fnWeekday(args []Value) (Value, error) {
	if err := requireArgsRange("WEEKDAY", len(args), 1, 2); err != nil {
		return Null, err
	}
	t, err := e.dateArg("WEEKDAY", args[0])
	if err != nil {
		return Null, err
	}
	day := int(t.Weekday())
	switch optionalInt(args, 1, 1) {
	case 2:
		return Number(float64((day+6)%7 + 1)), nil
	case 3:
		return Number(float64((day + 6) % 7)), nil
	}
	return Number(float64(day + 1)), nil
}

func (e *Evaluator) monthShift(name string, args []Value) (time.Time, error) {
	if err := requireArgs(name, len(args), 2); err != nil {
		return time.Time{}, err
	}
	start, err := e.dateArg(name, args[0])
	if err != nil {
		return time.Time{}, err
	}
	months, ok := args[1].AsNumber()
	if !ok {
		return time.Time{}, NewEvalError(ErrorKindTypeMismatch, "%s requires months as number", name)
	}
	return addMonths(start, toInt(months)), nil
}

func (e *Evaluator) fnEdate(args []Value) (Value, error) {
	t, err := e.monthShift("EDATE", args)
	if err != nil {
		return Null, err
	}
	return Text(formatDate(t)), nil
}

func (e *Evaluator) fnEomonth(args []Value) (Value, error) {
	t, err := e.monthShift("EOMONTH", args)
	if err != nil {
		return Null, err
	}
	return Text(formatDate(time.Date(t.Year(), t.Month(), daysIn(t), 0, 0, 0, 0, time.UTC))), nil
}

// fnDatedif is DATEDIF(start, end, unit) for the units Y, M, D, MD, YM
// and YD.
func (e *Evaluator) fnDatedif(args []Value) (Value, error) {
	if err := requireArgs("DATEDIF", len(args), 3); err != nil {
		return Null, err
	}
	start, err := e.dateArg("DATEDIF", args[0])
	if err != nil {
		return Null, err
	}
	end, err := e.dateArg("DATEDIF", args[1])
	if err != nil {
		return Null, err
	}
	sy, sm, sd := start.Date()
	ey, em, ed := end.Date()

	switch unit := strings.ToUpper(args[2].AsText()); unit {
	case "D":
		return Number(float64(daysBetween(start, end))), nil
	case "M":
		months := (ey-sy)*12 + int(em) - int(sm)
		if ed < sd {
			months--
		}
		return Number(float64(max(months, 0))), nil
	case "Y":
		years := ey - sy
		if em < sm || (em == sm && ed < sd) {
			years--
		}
		return Number(float64(max(years, 0))), nil
	case "MD":
		diff := ed - sd
		if diff < 0 {
			diff += daysIn(time.Date(ey, em-1, 1, 0, 0, 0, 0, time.UTC))
		}
		return Number(float64(diff)), nil
	case "YM":
		diff := int(em) - int(sm)
		if diff < 0 {
			diff += 12
		}
		if ed < sd && diff > 0 {
			diff--
		}
		return Number(float64(diff)), nil
	case "YD":
		year := ey
		if em < sm || (em == sm && ed < sd) {
			year--
		}
		anniversary := time.Date(year, sm, 1, 0, 0, 0, 0, time.UTC)
		anniversary = anniversary.AddDate(0, 0, min(sd, daysIn(anniversary))-1)
		return Number(float64(daysBetween(anniversary, end))), nil
	default:
		return Null, NewEvalError(ErrorKindInvalidArgument, "DATEDIF: unknown unit '%s'", unit)
	}
}

// fnYearfrac supports the day-count bases 0 (US 30/360), 1 (actual/actual),
// 2 (actual/360), 3 (actual/365) and 4 (European 30/360).
func (e *Evaluator) fnYearfrac(args []Value) (Value, error) {
	if err := requireArgsRange("YEARFRAC", len(args), 2, 3); err != nil {
		return Null, err
	}
	start, err := e.dateArg("YEARFRAC", args[0])
	if err != nil {
		return Null, err
	}
	end, err := e.dateArg("YEARFRAC", args[1])
	if err != nil {
		return Null, err
	}
	return yearFraction("YEARFRAC", start, end, optionalInt(args, 2, 0))
}

func yearFraction(name string, start, end time.Time, basis int) (Value, error) {
	days := float64(daysBetween(start, end))
	switch basis {
	case 0, 4:
		return Number(days360(start, end, basis == 4) / 360), nil
	case 1:
		yearDays := 365.0
		if isLeapYear(start.Year()) {
			yearDays = 366
		}
		return Number(days / yearDays), nil
	case 2:
		return Number(days / 360), nil
	case 3:
		return Number(days / 365), nil
	default:
		return Null, NewEvalError(ErrorKindInvalidArgument, "%s: unknown basis %d", name, basis)
	}
}

func days360(start, end time.Time, european bool) float64 {
	d1, d2 := start.Day(), end.Day()
	if d1 == 31 {
		d1 = 30
	}
	if d2 == 31 && (d1 >= 30 || european) {
		d2 = 30
	}
	return float64((end.Year()-start.Year())*360 + (int(end.Month())-int(start.Month()))*30 + d2 - d1)
}

func isWeekend(t time.Time) bool {
	return t.Weekday() == time.Saturday || t.Weekday() == time.Sunday
}

// holidays reads the optional holiday list of WORKDAY and NETWORKDAYS.
func (e *Evaluator) holidays(name string, args []Value) (map[float64]struct{}, error) {
	set := make(map[float64]struct{})
	if len(args) < 3 {
		return set, nil
	}
	for _, v := range args[2].Values() {
		t, err := e.dateArg(name, v)
		if err != nil {
			return nil, err
		}
		set[dateToSerial(t)] = struct{}{}
	}
	return set, nil
}

func (e *Evaluator) fnWorkday(args []Value) (Value, error) {
	if err := requireArgsRange("WORKDAY", len(args), 2, 3); err != nil {
		return Null, err
	}
	current, err := e.dateArg("WORKDAY", args[0])
	if err != nil {
		return Null, err
	}
	days, ok := args[1].AsNumber()
	if !ok {
		return Null, NewEvalError(ErrorKindTypeMismatch, "WORKDAY: days must be a number")
	}
	off, err := e.holidays("WORKDAY", args)
	if err != nil {
		return Null, err
	}
	if math.Abs(days) > maxWorkdays {
		return Null, NewEvalError(ErrorKindDomain, "WORKDAY: days must be within +/-%d", maxWorkdays)
	}
	step := 1
	if days < 0 {
		step = -1
	}
	for remaining := toInt(math.Abs(days)); remaining > 0; {
		current = current.AddDate(0, 0, step)
		if _, holiday := off[dateToSerial(current)]; !isWeekend(current) && !holiday {
			remaining--
		}
	}
	return Text(formatDate(current)), nil
}

// fnNetworkdays counts working days between two dates inclusive. The count
// is negative when end is before start.
func (e *Evaluator) fnNetworkdays(args []Value) (Value, error) {
	if err := requireArgsRange("NETWORKDAYS", len(args), 2, 3); err != nil {
		return Null, err
	}
	start, err := e.dateArg("NETWORKDAYS", args[0])
	if err != nil {
		return Null, err
	}
	end, err := e.dateArg("NETWORKDAYS", args[1])
	if err != nil {
		return Null, err
	}
	off, err := e.holidays("NETWORKDAYS", args)
	if err != nil {
		return Null, err
	}
	sign := 1.0
	if end.Before(start) {
		start, end = end, start
		sign = -1
	}
	if daysBetween(start, end) > 2*maxWorkdays {
		return Null, NewEvalError(ErrorKindDomain, "NETWORKDAYS: range longer than %d days", 2*maxWorkdays)
	}
	count := 0
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if _, holiday := off[dateToSerial(d)]; !isWeekend(d) && !holiday {
			count++
		}
	}
	return Number(sign * float64(count)), nil
}
