package types

import (
	"errors"
	"math/bits"
	"strconv"
	"strings"
	"time"
)

var errBadDuration = errors.New("malformed ISO 8601 duration")

// FormatDuration renders d as an ISO 8601 duration, e.g. PT1H2M3.5S.
// The result is exact to the nanosecond and ParseDuration reverses it.
func FormatDuration(d time.Duration) string {
	var sb strings.Builder
	if d < 0 {
		sb.WriteByte('-')
		// math.MinInt64 has no positive counterpart; render it through uint64
		u := uint64(-(d + 1)) + 1
		writeDuration(&sb, u)
		return sb.String()
	}
	writeDuration(&sb, uint64(d))
	return sb.String()
}

func writeDuration(sb *strings.Builder, ns uint64) {
	const (
		second = uint64(time.Second)
		minute = uint64(time.Minute)
		hour   = uint64(time.Hour)
		day    = 24 * hour
	)
	sb.WriteByte('P')
	if days := ns / day; days > 0 {
		sb.WriteString(strconv.FormatUint(days, 10))
		sb.WriteByte('D')
		ns %= day
	}
	sb.WriteByte('T')
	wrote := false
	if h := ns / hour; h > 0 {
		sb.WriteString(strconv.FormatUint(h, 10))
		sb.WriteByte('H')
		ns %= hour
		wrote = true
	}
	if m := ns / minute; m > 0 {
		sb.WriteString(strconv.FormatUint(m, 10))
		sb.WriteByte('M')
		ns %= minute
		wrote = true
	}
	if ns > 0 || !wrote {
		sb.WriteString(strconv.FormatUint(ns/second, 10))
		if frac := ns % second; frac > 0 {
			f := strconv.FormatUint(frac+second, 10)[1:] // zero padded to 9 digits
			sb.WriteByte('.')
			sb.WriteString(strings.TrimRight(f, "0"))
		}
		sb.WriteByte('S')
	}
}

// ParseDuration parses an ISO 8601 duration with optional sign and weeks, days,
// hours, minutes and (fractional) seconds. Years and months are rejected since
// they have no fixed length.
func ParseDuration(s string) (time.Duration, error) {
	neg := false
	switch {
	case strings.HasPrefix(s, "-"):
		neg = true
		s = s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}
	if len(s) < 2 || (s[0] != 'P' && s[0] != 'p') {
		return 0, errBadDuration
	}
	s = s[1:]

	var total uint64
	inTime := false
	seen := false
	for len(s) > 0 {
		if s[0] == 'T' || s[0] == 't' {
			if inTime {
				return 0, errBadDuration
			}
			inTime = true
			s = s[1:]
			continue
		}
		n := 0
		for n < len(s) && (s[n] >= '0' && s[n] <= '9' || s[n] == '.') {
			n++
		}
		if n == 0 || n == len(s) {
			return 0, errBadDuration
		}
		num, unit := s[:n], s[n]
		s = s[n+1:]

		var scale uint64
		switch {
		case !inTime && (unit == 'W' || unit == 'w'):
			scale = uint64(7 * 24 * time.Hour)
		case !inTime && (unit == 'D' || unit == 'd'):
			scale = uint64(24 * time.Hour)
		case inTime && (unit == 'H' || unit == 'h'):
			scale = uint64(time.Hour)
		case inTime && (unit == 'M' || unit == 'm'):
			scale = uint64(time.Minute)
		case inTime && (unit == 'S' || unit == 's'):
			scale = uint64(time.Second)
		default:
			return 0, errBadDuration
		}
		v, err := scaleNumber(num, scale)
		if err != nil {
			return 0, err
		}
		var carry uint64
		if total, carry = bits.Add64(total, v, 0); carry != 0 {
			return 0, errBadDuration
		}
		seen = true
	}
	if !seen || total > 1<<63 || (!neg && total == 1<<63) {
		return 0, errBadDuration
	}
	if neg {
		return -time.Duration(total - 1) - 1, nil
	}
	return time.Duration(total), nil
}

// scaleNumber multiplies a decimal literal by scale using integer arithmetic
// so that nanosecond precision survives.
func scaleNumber(num string, scale uint64) (uint64, error) {
	intPart, fracPart, hasFrac := strings.Cut(num, ".")
	if strings.Contains(fracPart, ".") || (intPart == "" && fracPart == "") {
		return 0, errBadDuration
	}
	var whole uint64
	if intPart != "" {
		w, err := strconv.ParseUint(intPart, 10, 64)
		if err != nil {
			return 0, errBadDuration
		}
		whole = w
	}
	hi, result := bits.Mul64(whole, scale)
	if hi != 0 {
		return 0, errBadDuration
	}
	if hasFrac && fracPart != "" {
		if len(fracPart) > 9 {
			fracPart = fracPart[:9]
		}
		f, err := strconv.ParseUint(fracPart, 10, 64)
		if err != nil {
			return 0, errBadDuration
		}
		denom := uint64(1)
		for i := 0; i < len(fracPart); i++ {
			denom *= 10
		}
		var carry uint64
		result, carry = bits.Add64(result, (scale/denom)*f+(scale%denom)*f/denom, 0)
		if carry != 0 {
			return 0, errBadDuration
		}
	}
	return result, nil
}
