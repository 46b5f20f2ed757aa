package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
)

// DecodeLenient unmarshals raw into v, keeping every field that decoded
// when some other field has the wrong JSON type. Only malformed JSON is an
// error.
func DecodeLenient(raw []byte, v any) error {
	err := json.Unmarshal(raw, v)
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return nil
	}
	return err
}

// flexNumber reads a JSON number or a string holding one. Anything else,
// including NaN and infinities, reports false.
func flexNumber(raw json.RawMessage) (float64, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0, false
	}
	text := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return 0, false
		}
		text = strings.TrimSpace(text)
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func flexFloat(raw json.RawMessage) *float64 {
	if f, ok := flexNumber(raw); ok {
		return &f
	}
	return nil
}

// FlexInt64 reads a number or numeric string as an integer, flooring
// fractional values. Anything else is nil.
func FlexInt64(raw json.RawMessage) *int64 {
	f, ok := flexNumber(raw)
	if !ok || f >= math.MaxInt64 || f < math.MinInt64 {
		return nil
	}
	i := int64(math.Floor(f))
	return &i
}

func flexInt(raw json.RawMessage) *int {
	i := FlexInt64(raw)
	if i == nil || *i > math.MaxInt32 || *i < math.MinInt32 {
		return nil
	}
	v := int(*i)
	return &v
}
