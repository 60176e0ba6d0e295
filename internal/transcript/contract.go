package transcript

import "fmt"

// Violation describes a segment that breaks the recognizer's timing contract.
type Violation struct {
	Index  int
	Reason string
}

func (v Violation) String() string {
	return fmt.Sprintf("segment %d: %s", v.Index+1, v.Reason)
}

// CheckSegments reports spans with negative offsets, end before start, or a
// start earlier than the previous segment's start. Nothing is modified.
func CheckSegments(segments []Segment) []Violation {
	var out []Violation
	for i, seg := range segments {
		switch {
		case seg.Start < 0:
			out = append(out, Violation{Index: i, Reason: "negative start"})
		case seg.End < seg.Start:
			out = append(out, Violation{Index: i, Reason: "end before start"})
		}
		if i > 0 && seg.Start < segments[i-1].Start {
			out = append(out, Violation{Index: i, Reason: "out of order start"})
		}
	}
	return out
}
