package kafka

import "encoding/json"

// MustMarshal is for values whose encoding can not fail, such as event envelopes.
func MustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
