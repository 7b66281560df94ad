//go:build go1.18

package domain

import (
	"testing"
	"unicode/utf8"
)

// FuzzParseTaskID tests that parsing never panics on arbitrary input and
// always returns either a valid id or an error.
//
// Justification: trust boundary functions must handle arbitrary input
// safely. Fuzz tests verify no panics and consistent invariants.
func FuzzParseTaskID(f *testing.F) {
	// Seed corpus with interesting inputs
	f.Add("")
	f.Add("550e8400-e29b-41d4-a716-446655440000")
	f.Add("00000000-0000-0000-0000-000000000000")
	f.Add("not-a-uuid")
	f.Add("'; DROP TABLE enrichment_tasks;--")
	f.Add(string([]byte{0x00, 0x01, 0x02}))
	f.Add("550e8400-e29b-41d4-a716-446655440000\x00suffix")

	f.Fuzz(func(t *testing.T, input string) {
		id, err := ParseTaskID(input)

		// Invariant 1: no panics (implicit)

		// Invariant 2: a valid id must round-trip
		if err == nil {
			roundTrip, err2 := ParseTaskID(id.String())
			if err2 != nil {
				t.Errorf("valid id failed round-trip: %v", err2)
			}
			if roundTrip != id {
				t.Error("round-trip changed id value")
			}
		}

		// Invariant 3: non-UTF8 input must be rejected
		if !utf8.ValidString(input) && err == nil {
			t.Error("non-UTF8 input was accepted")
		}
	})
}
