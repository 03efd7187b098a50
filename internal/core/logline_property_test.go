package core

import (
	"testing"
	"time"

	"pgregory.net/rapid"
)

// Feature: greenie, Property 2: Timestamp round-trip
// Any millisecond-precision UTC time formatted into a log line parses back
// to the same instant.
func TestProperty_TimestampRoundTrip(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		sec := rapid.Int64Range(0, 4102444799).Draw(rt, "sec") // 1970..2099
		ms := rapid.Int64Range(0, 999).Draw(rt, "ms")
		ts := time.Unix(sec, ms*int64(time.Millisecond)).UTC()

		line := ts.Format(timestampLayout) + " INFO    DCS: x"
		got, ok := ParseLine(line)
		if !ok {
			rt.Fatalf("ParseLine(%q) failed", line)
		}
		if !got.Time.Equal(ts) {
			rt.Errorf("Time = %s, want %s", got.Time, ts)
		}
		if got.Message != "DCS: x" {
			rt.Errorf("Message = %q", got.Message)
		}
	})
}

// Feature: greenie, Property 3: Grade comment text survives extraction
// The grade text of a comment line is recovered verbatim, minus
// surrounding whitespace.
func TestProperty_GradeCommentTextRecovered(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		grade := rapid.StringMatching(`GRADE:[A-Z_()]{1,6}( [A-Z()_]{1,8}){0,4}`).Draw(rt, "grade")

		ev, ok := ExtractEvent(gradeLine(0, grade))
		if !ok {
			rt.Fatalf("no event for grade %q", grade)
		}
		gc, ok := ev.(GradeCommentEvent)
		if !ok {
			rt.Fatalf("event = %T, want GradeCommentEvent", ev)
		}
		if gc.RawGrade != grade {
			rt.Errorf("RawGrade = %q, want %q", gc.RawGrade, grade)
		}
	})
}
