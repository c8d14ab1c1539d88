package config

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const errMsgUnsupportedType = "unsupported type %T"

var errEmptyString = errors.New("empty string")

// toInt converts koanf values (env strings, YAML numbers) to int.
func toInt(value any) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int64:
		if v > math.MaxInt || v < math.MinInt {
			return 0, fmt.Errorf("value %d overflows int", v)
		}
		return int(v), nil
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) || math.Trunc(v) != v {
			return 0, fmt.Errorf("value %v is not an integer", v)
		}
		if v > math.MaxInt || v < math.MinInt {
			return 0, fmt.Errorf("value %v overflows int", v)
		}
		return int(v), nil
	case string:
		str := strings.TrimSpace(v)
		if str == "" {
			return 0, errEmptyString
		}
		return strconv.Atoi(str)
	default:
		return 0, fmt.Errorf(errMsgUnsupportedType, value)
	}
}

// toBool converts various types to bool.
func toBool(value any) (bool, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		str := strings.TrimSpace(v)
		if str == "" {
			return false, errEmptyString
		}
		return strconv.ParseBool(str)
	case int, int64, float64:
		n, err := toInt(v)
		if err != nil {
			return false, err
		}
		return n != 0, nil
	default:
		return false, fmt.Errorf(errMsgUnsupportedType, value)
	}
}

// toDuration accepts Go duration strings ("1500ms") and bare integers as seconds.
func toDuration(value any) (time.Duration, error) {
	switch v := value.(type) {
	case time.Duration:
		return v, nil
	case string:
		str := strings.TrimSpace(v)
		if str == "" {
			return 0, errEmptyString
		}
		if d, err := time.ParseDuration(str); err == nil {
			return d, nil
		}
		n, err := strconv.Atoi(str)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", str)
		}
		return time.Duration(n) * time.Second, nil
	case int, int64, float64:
		n, err := toInt(v)
		if err != nil {
			return 0, err
		}
		return time.Duration(n) * time.Second, nil
	default:
		return 0, fmt.Errorf(errMsgUnsupportedType, value)
	}
}
