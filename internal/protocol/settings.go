// internal/protocol/settings.go
package protocol

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Settings values arrive from YAML, JSON or environment overrides, so numbers
// may be int, float64 or string.

// IntValue reads an integer setting, returning def when the key is absent
func IntValue(config map[string]interface{}, key string, def int) (int, error) {
	raw, ok := config[key]
	if !ok || raw == nil {
		return def, nil
	}

	switch v := raw.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("%s: %v is not an integer", key, v)
		}
		return int(v), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, fmt.Errorf("%s: %w", key, err)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("%s: invalid type %T", key, raw)
	}
}

// FloatValue reads a numeric setting, returning def when the key is absent
func FloatValue(config map[string]interface{}, key string, def float64) (float64, error) {
	raw, ok := config[key]
	if !ok || raw == nil {
		return def, nil
	}

	switch v := raw.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", key, err)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("%s: invalid type %T", key, raw)
	}
}

// DurationValue reads a duration setting. Numbers are seconds; strings may
// be Go durations ("250ms") or plain seconds ("0.25").
func DurationValue(config map[string]interface{}, key string, def time.Duration) (time.Duration, error) {
	raw, ok := config[key]
	if !ok || raw == nil {
		return def, nil
	}

	var d time.Duration
	switch v := raw.(type) {
	case time.Duration:
		d = v
	case string:
		s := strings.TrimSpace(v)
		if parsed, err := time.ParseDuration(s); err == nil {
			d = parsed
			break
		}
		seconds, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("%s: invalid duration %q", key, v)
		}
		d = time.Duration(seconds * float64(time.Second))
	default:
		seconds, err := FloatValue(config, key, 0)
		if err != nil {
			return 0, err
		}
		d = time.Duration(seconds * float64(time.Second))
	}

	if d < 0 {
		return 0, fmt.Errorf("%s: negative duration %v", key, d)
	}
	return d, nil
}

// StringValue reads a string setting, returning def when the key is absent
func StringValue(config map[string]interface{}, key string, def string) (string, error) {
	raw, ok := config[key]
	if !ok || raw == nil {
		return def, nil
	}

	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%s: invalid type %T", key, raw)
	}
	return s, nil
}

// BoolValue reads a boolean setting, returning def when the key is absent
func BoolValue(config map[string]interface{}, key string, def bool) (bool, error) {
	raw, ok := config[key]
	if !ok || raw == nil {
		return def, nil
	}

	switch v := raw.(type) {
	case bool:
		return v, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return false, fmt.Errorf("%s: %w", key, err)
		}
		return b, nil
	default:
		return false, fmt.Errorf("%s: invalid type %T", key, raw)
	}
}

// firstKey returns the first key present in config, or the first candidate
func firstKey(config map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if _, ok := config[k]; ok {
			return k
		}
	}
	return keys[0]
}

// ParseParity accepts full names and single letters, case-insensitively
func ParseParity(s string) (Parity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "n", "none":
		return ParityNone, nil
	case "e", "even":
		return ParityEven, nil
	case "o", "odd":
		return ParityOdd, nil
	case "m", "mark":
		return ParityMark, nil
	case "s", "space":
		return ParitySpace, nil
	default:
		return "", fmt.Errorf("invalid parity: %q", s)
	}
}

// ParseFraming reads baudrate, data_bits, stop_bits and parity over def
func ParseFraming(config map[string]interface{}, def Framing) (Framing, error) {
	f := def
	var err error

	// Parse baud rate
	if f.BaudRate, err = IntValue(config, firstKey(config, "baudrate", "baud_rate"), def.BaudRate); err != nil {
		return Framing{}, err
	}

	// Parse data bits
	if f.DataBits, err = IntValue(config, firstKey(config, "data_bits", "bytesize"), def.DataBits); err != nil {
		return Framing{}, err
	}

	// Parse stop bits
	if f.StopBits, err = FloatValue(config, firstKey(config, "stop_bits", "stopbits"), def.StopBits); err != nil {
		return Framing{}, err
	}

	// Parse parity
	parity, err := StringValue(config, "parity", string(def.Parity))
	if err != nil {
		return Framing{}, err
	}
	if f.Parity, err = ParseParity(parity); err != nil {
		return Framing{}, err
	}

	if err := f.Validate(); err != nil {
		return Framing{}, err
	}
	return f, nil
}
