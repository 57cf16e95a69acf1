package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimeLayouts are tried in order when decoding a Time.
var TimeLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02",
}

// unquote returns the contents of a JSON string or the raw token for bare
// scalars. ok is false for null and empty strings.
func unquote(data []byte) (string, bool, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return "", false, nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return "", false, err
		}
		s = strings.TrimSpace(s)
		return s, s != "", nil
	}
	return string(data), true, nil
}

// Int is an integer the remote API may send as a number or a numeric string.
type Int struct {
	Value int64
	Valid bool
}

// UnmarshalJSON implements json.Unmarshaler.
func (i *Int) UnmarshalJSON(data []byte) error {
	s, ok, err := unquote(data)
	if err != nil {
		return err
	}
	if !ok {
		*i = Int{}
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		// "12.0" style integers
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil || f != float64(int64(f)) {
			return fmt.Errorf("invalid integer %q", s)
		}
		v = int64(f)
	}
	*i = Int{Value: v, Valid: true}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (i Int) MarshalJSON() ([]byte, error) {
	if !i.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(strconv.FormatInt(i.Value, 10))
}

// Float is a nullable number sent as a number or a numeric string.
type Float struct {
	Value float64
	Valid bool
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *Float) UnmarshalJSON(data []byte) error {
	s, ok, err := unquote(data)
	if err != nil {
		return err
	}
	if !ok {
		*f = Float{}
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid number %q", s)
	}
	*f = Float{Value: v, Valid: true}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (f Float) MarshalJSON() ([]byte, error) {
	if !f.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(f.Value)
}

// Ptr returns a pointer to the value, or nil when unset.
func (f Float) Ptr() *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Value
	return &v
}

// Time is a nullable timestamp in one of TimeLayouts, interpreted as UTC.
type Time struct {
	Value time.Time
	Valid bool
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Time) UnmarshalJSON(data []byte) error {
	s, ok, err := unquote(data)
	if err != nil {
		return err
	}
	if !ok || s == "0000-00-00 00:00:00" {
		*t = Time{}
		return nil
	}
	for _, layout := range TimeLayouts {
		if v, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			*t = Time{Value: v.UTC(), Valid: true}
			return nil
		}
	}
	return fmt.Errorf("invalid timestamp %q", s)
}

// MarshalJSON implements json.Marshaler.
func (t Time) MarshalJSON() ([]byte, error) {
	if !t.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(t.Value.UTC().Format(TimeLayouts[0]))
}

// Ptr returns a pointer to the value, or nil when unset.
func (t Time) Ptr() *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Value
	return &v
}
