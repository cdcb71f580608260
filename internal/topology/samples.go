package topology

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/buger/jsonparser"

	"github.com/HaPhanBaoMinh/netobs/internal/domain"
)

var errNotArray = errors.New("result is not an array")

// ParseValue converts a Prometheus string value. Anything that is not a finite
// number becomes 0.
func ParseValue(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return finite(f)
}

func finite(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// DecodeSamples reads a Prometheus query result. It accepts either a full API
// response ({"status":..,"data":{"resultType":..,"result":[..]}}) or the bare
// result array. Vector entries carry "value", matrix entries carry "values".
func DecodeSamples(raw []byte) (domain.SampleStore, error) {
	data, typ, _, err := jsonparser.Get(raw)
	if err != nil {
		return nil, fmt.Errorf("decode samples: %w", err)
	}
	resultType := ""
	if typ == jsonparser.Object {
		resultType, _ = jsonparser.GetString(data, "data", "resultType")
		data, typ, _, err = jsonparser.Get(data, "data", "result")
		if err != nil {
			return nil, fmt.Errorf("decode samples: %w", err)
		}
	}
	if typ != jsonparser.Array {
		return nil, fmt.Errorf("decode samples: %w", errNotArray)
	}

	if resultType == "scalar" {
		_, v := decodePoint(data)
		return domain.SampleStore{{Labels: map[string]string{}, Value: v}}, nil
	}

	store := domain.SampleStore{}
	var itemErr error
	_, err = jsonparser.ArrayEach(data, func(item []byte, dt jsonparser.ValueType, _ int, _ error) {
		if itemErr != nil || dt != jsonparser.Object {
			return
		}
		s, err := decodeSample(item)
		if err != nil {
			itemErr = err
			return
		}
		store = append(store, s)
	})
	if err == nil {
		err = itemErr
	}
	if err != nil {
		return nil, fmt.Errorf("decode samples: %w", err)
	}
	return store, nil
}

func decodeSample(item []byte) (domain.Sample, error) {
	s := domain.Sample{Labels: map[string]string{}}
	err := jsonparser.ObjectEach(item, func(key, value []byte, dt jsonparser.ValueType, _ int) error {
		if dt != jsonparser.String {
			return nil
		}
		v, err := jsonparser.ParseString(value)
		if err != nil {
			return err
		}
		s.Labels[string(key)] = v
		return nil
	}, "metric")
	if err != nil && !errors.Is(err, jsonparser.KeyPathNotFoundError) {
		return s, err
	}

	if pt, dt, _, err := jsonparser.Get(item, "value"); err == nil && dt == jsonparser.Array {
		_, s.Value = decodePoint(pt)
		return s, nil
	}

	_, err = jsonparser.ArrayEach(item, func(pt []byte, dt jsonparser.ValueType, _ int, _ error) {
		if dt != jsonparser.Array {
			return
		}
		ts, v := decodePoint(pt)
		s.Series = append(s.Series, domain.Point{Timestamp: ts, Value: v})
	}, "values")
	if err != nil && !errors.Is(err, jsonparser.KeyPathNotFoundError) {
		return s, err
	}
	return s, nil
}

// decodePoint reads a [timestamp, "value"] tuple.
func decodePoint(pt []byte) (time.Time, float64) {
	var (
		ts  time.Time
		val float64
		idx int
	)
	_, _ = jsonparser.ArrayEach(pt, func(v []byte, dt jsonparser.ValueType, _ int, _ error) {
		switch idx {
		case 0:
			if f, err := jsonparser.ParseFloat(v); err == nil {
				sec, frac := math.Modf(f)
				ts = time.Unix(int64(sec), int64(frac*1e9)).UTC()
			}
		case 1:
			if dt == jsonparser.String {
				if str, err := jsonparser.ParseString(v); err == nil {
					val = ParseValue(str)
				}
			} else if dt == jsonparser.Number {
				if f, err := jsonparser.ParseFloat(v); err == nil {
					val = finite(f)
				}
			}
		}
		idx++
	})
	return ts, val
}
