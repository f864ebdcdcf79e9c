package model

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FlexString decodes from either a JSON string or a JSON number. Older
// clients sent ages, table ids and Telegram ids as numbers.
type FlexString string

func (s *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = FlexString(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return fmt.Errorf("expected string or number, got %s", data)
	}
	*s = FlexString(num.String())
	return nil
}

// String returns the trimmed value.
func (s FlexString) String() string {
	return strings.TrimSpace(string(s))
}

// Meta is the metadata record stored next to each registration. It
// duplicates the booking details for records that predate the normalized
// table reference. Empty fields are omitted from storage.
type Meta struct {
	Name           FlexString `json:"name,omitempty"`
	Age            FlexString `json:"age,omitempty"`
	Contact        FlexString `json:"contact,omitempty"`
	TableID        FlexString `json:"tableId,omitempty"`
	MasterName     FlexString `json:"masterName,omitempty"`
	System         FlexString `json:"system,omitempty"`
	RemainingSeats *int       `json:"remainingSeats,omitempty"`
}

// Normalize trims every text field and drops a negative seat count.
func (m Meta) Normalize() Meta {
	m.Name = FlexString(m.Name.String())
	m.Age = FlexString(m.Age.String())
	m.Contact = FlexString(m.Contact.String())
	m.TableID = FlexString(m.TableID.String())
	m.MasterName = FlexString(m.MasterName.String())
	m.System = FlexString(m.System.String())
	if m.RemainingSeats != nil && *m.RemainingSeats < 0 {
		m.RemainingSeats = nil
	}
	return m
}

// IsZero reports whether no field is set.
func (m Meta) IsZero() bool {
	return m.Normalize() == (Meta{})
}

// Value stores Meta as a JSON document, or NULL when empty.
func (m Meta) Value() (driver.Value, error) {
	m = m.Normalize()
	if m.IsZero() {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal meta: %w", err)
	}
	return string(b), nil
}

// Scan reads a JSON document. Each field decodes on its own, so a legacy
// value of the wrong type only drops that field. Unparseable documents
// decode as an empty record rather than failing the whole query.
func (m *Meta) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*m = Meta{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("meta: unsupported source type %T", src)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		*m = Meta{}
		return nil
	}

	var decoded Meta
	for key, dst := range map[string]*FlexString{
		"name":       &decoded.Name,
		"age":        &decoded.Age,
		"contact":    &decoded.Contact,
		"tableId":    &decoded.TableID,
		"masterName": &decoded.MasterName,
		"system":     &decoded.System,
	} {
		if v, ok := fields[key]; ok {
			var s FlexString
			if err := s.UnmarshalJSON(v); err == nil {
				*dst = s
			}
		}
	}
	decoded.RemainingSeats = parseSeats(fields["remainingSeats"])
	*m = decoded.Normalize()
	return nil
}

// parseSeats accepts a JSON integer, an integral float or a numeric string.
// Anything else is treated as absent.
func parseSeats(raw json.RawMessage) *int {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	text := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return nil
		}
		text = strings.TrimSpace(text)
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) || f != math.Trunc(f) {
		return nil
	}
	if f > math.MaxInt32 || f < math.MinInt32 {
		return nil
	}
	n := int(f)
	return &n
}
