package medication

import (
	"encoding/json"
	"fmt"
	"time"
)

// Timestamp is a local wall-clock instant serialized as
// "2006-01-02T15:04:05".
//
// Values written by other tools with a zone or fractional seconds
// (RFC 3339) are accepted on decode.
type Timestamp time.Time

// Time returns t as a time.Time.
func (t Timestamp) Time() time.Time { return time.Time(t) }

// String formats t with TimestampLayout.
func (t Timestamp) String() string { return time.Time(t).Format(TimestampLayout) }

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*t = Timestamp(parsed)
	return nil
}

// ParseTimestamp parses s as TimestampLayout in the local zone, falling back
// to RFC 3339.
func ParseTimestamp(s string) (time.Time, error) {
	if ts, err := time.ParseInLocation(TimestampLayout, s, time.Local); err == nil {
		return ts, nil
	}
	ts, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("timestamp %q: %w", s, err)
	}
	return ts, nil
}
