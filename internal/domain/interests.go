package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// InterestFlag is one interest id and whether the person holds it.
type InterestFlag struct {
	ID string
	On bool
}

// Interests is an ordered set of interest flags, always sorted by ID.
// The zero value is an empty set.
type Interests struct {
	flags []InterestFlag
}

// NewInterests builds an Interests value from a plain map.
func NewInterests(m map[string]bool) Interests {
	var in Interests
	for id, on := range m {
		in.Set(id, on)
	}
	return in
}

// Set records the flag for id, replacing any previous value.
func (in *Interests) Set(id string, on bool) {
	i := sort.Search(len(in.flags), func(i int) bool { return in.flags[i].ID >= id })
	if i < len(in.flags) && in.flags[i].ID == id {
		in.flags[i].On = on
		return
	}
	in.flags = append(in.flags, InterestFlag{})
	copy(in.flags[i+1:], in.flags[i:])
	in.flags[i] = InterestFlag{ID: id, On: on}
}

// Get returns the flag for id and whether it is present at all.
func (in Interests) Get(id string) (on, ok bool) {
	i := sort.Search(len(in.flags), func(i int) bool { return in.flags[i].ID >= id })
	if i < len(in.flags) && in.flags[i].ID == id {
		return in.flags[i].On, true
	}
	return false, false
}

// Len returns the number of interest ids recorded.
func (in Interests) Len() int { return len(in.flags) }

// Flags returns a copy of the flags in id order.
func (in Interests) Flags() []InterestFlag {
	out := make([]InterestFlag, len(in.flags))
	copy(out, in.flags)
	return out
}

// Map returns the flags as a plain map, e.g. for a JSON request body.
func (in Interests) Map() map[string]bool {
	m := make(map[string]bool, len(in.flags))
	for _, f := range in.flags {
		m[f.ID] = f.On
	}
	return m
}

// Equal reports structural equality: same ids with the same flags.
func (in Interests) Equal(other Interests) bool {
	if len(in.flags) != len(other.flags) {
		return false
	}
	for i := range in.flags {
		if in.flags[i] != other.flags[i] {
			return false
		}
	}
	return true
}

// Canonical returns the stable text form used for hashing: "id:1,id:0".
func (in Interests) Canonical() string {
	var b strings.Builder
	for i, f := range in.flags {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(f.ID)
		if f.On {
			b.WriteString(":1")
		} else {
			b.WriteString(":0")
		}
	}
	return b.String()
}

// MarshalJSON encodes the set as a JSON object. encoding/json sorts map
// keys, so the output is deterministic.
func (in Interests) MarshalJSON() ([]byte, error) {
	return json.Marshal(in.Map())
}

// UnmarshalJSON decodes a JSON object of id -> bool. null decodes to an
// empty set.
func (in *Interests) UnmarshalJSON(data []byte) error {
	var m map[string]bool
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("decode interests: %w", err)
	}
	*in = NewInterests(m)
	return nil
}

// Value stores the set in a JSON/JSONB column.
func (in Interests) Value() (driver.Value, error) {
	b, err := in.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan reads the set back from a JSON/JSONB column.
func (in *Interests) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*in = Interests{}
		return nil
	case []byte:
		return in.UnmarshalJSON(v)
	case string:
		return in.UnmarshalJSON([]byte(v))
	default:
		return fmt.Errorf("scan interests: unsupported type %T", src)
	}
}
