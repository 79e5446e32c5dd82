package config

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-viper/mapstructure/v2"
)

var durationType = reflect.TypeOf(time.Duration(0))

// byteSizeHookFunc parses humanized sizes ("64MiB", "1 GB") into integer
// fields. Plain digit strings are accepted as well.
func byteSizeHookFunc() mapstructure.DecodeHookFuncType {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if from.Kind() != reflect.String || to == durationType {
			return data, nil
		}

		var max uint64
		switch to.Kind() {
		case reflect.Uint64, reflect.Uint:
			max = math.MaxUint64
		case reflect.Uint32:
			max = math.MaxUint32
		case reflect.Int64, reflect.Int:
			max = math.MaxInt64
		default:
			return data, nil
		}

		s := strings.TrimSpace(data.(string))
		if s == "" {
			return data, nil
		}
		if _, err := strconv.ParseUint(s, 10, 64); err == nil {
			return data, nil
		}

		n, err := humanize.ParseBytes(s)
		if err != nil {
			return nil, fmt.Errorf("invalid size %q: %w", s, err)
		}
		if n > max {
			return nil, fmt.Errorf("size %q exceeds %s", s, humanize.IBytes(max))
		}
		return n, nil
	}
}
