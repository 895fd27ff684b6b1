package rules

import (
	"encoding/json"
	"math"
)

// MarshalJSON writes an infinite conviction as null, since JSON has no
// representation for infinity.
func (r Rule) MarshalJSON() ([]byte, error) {
	type plain Rule
	out := struct {
		plain
		Conviction *float64 `json:"conviction"`
	}{plain: plain(r)}
	if !math.IsInf(r.Conviction, 0) && !math.IsNaN(r.Conviction) {
		v := r.Conviction
		out.Conviction = &v
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads a null conviction back as +Inf.
func (r *Rule) UnmarshalJSON(data []byte) error {
	type plain Rule
	var in struct {
		plain
		Conviction *float64 `json:"conviction"`
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*r = Rule(in.plain)
	r.Conviction = math.Inf(1)
	if in.Conviction != nil {
		r.Conviction = *in.Conviction
	}
	return nil
}
