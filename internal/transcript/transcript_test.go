package transcript

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestNewTrimsAndDefaultsLanguage(t *testing.T) {
	tr := New("  hello world \n", "", []Segment{NewSegment(0, 1, " hello ")}, true)
	if !tr.Success {
		t.Fatal("expected success")
	}
	if tr.Text != "hello world" {
		t.Fatalf("unexpected text %q", tr.Text)
	}
	if tr.Language != UnknownLanguage {
		t.Fatalf("expected unknown language, got %q", tr.Language)
	}
	if tr.Segments[0].Text != "hello" {
		t.Fatalf("expected trimmed segment text, got %q", tr.Segments[0].Text)
	}
}

func TestNewCopiesSegments(t *testing.T) {
	segs := []Segment{{Start: 0, End: 1, Text: "a"}}
	tr := New("a", "en", segs, true)
	segs[0].Text = "mutated"
	if tr.Segments[0].Text != "a" {
		t.Fatal("transcript should not share the caller's segment slice")
	}
}

func TestNewWithoutTimestampsDropsSegments(t *testing.T) {
	tr := New("a", "en", []Segment{{Start: 0, End: 1, Text: "a"}}, false)
	if tr.Segments != nil || tr.SegmentCount() != 0 || tr.HasSegments() {
		t.Fatalf("expected no segments, got %+v", tr)
	}
}

func TestEmptySegmentTextPreserved(t *testing.T) {
	tr := New("hello", "en", []Segment{NewSegment(0, 1.2, "hello"), NewSegment(1.2, 2, "   ")}, true)
	if tr.SegmentCount() != 2 {
		t.Fatalf("expected 2 segments, got %d", tr.SegmentCount())
	}
	if tr.Segments[1].Text != "" {
		t.Fatalf("expected empty text, got %q", tr.Segments[1].Text)
	}
}

func TestFailed(t *testing.T) {
	tr := Failed(errors.New("decoder crashed"))
	if tr.Success || tr.Error != "decoder crashed" || tr.Language != UnknownLanguage {
		t.Fatalf("unexpected failed transcript %+v", tr)
	}
	if Failed(nil).Error == "" {
		t.Fatal("expected placeholder error message")
	}
}

func TestMarshalJSONShape(t *testing.T) {
	data, err := json.Marshal(New("hi", "en", nil, true))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"segments":[]`) {
		t.Fatalf("expected empty segments array, got %s", data)
	}

	data, err = json.Marshal(New("hi", "en", nil, false))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(data), "segments") {
		t.Fatalf("expected segments omitted, got %s", data)
	}

	data, err = json.Marshal(Failed(errors.New("boom")))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got := string(data)
	if !strings.Contains(got, `"success":false`) || !strings.Contains(got, `"error":"boom"`) || strings.Contains(got, "segments") {
		t.Fatalf("unexpected failed payload %s", got)
	}
}

func TestUnmarshalRestoresTimestampedFlag(t *testing.T) {
	original := New("hi there", "fa", []Segment{{Start: 0.5, End: 1.25, Text: "hi there"}}, true)
	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded Transcript
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !decoded.Timestamped || decoded.SegmentCount() != 1 || decoded.Segments[0].End != 1.25 || decoded.Language != "fa" {
		t.Fatalf("unexpected decoded transcript %+v", decoded)
	}
}

func TestJoinSegmentText(t *testing.T) {
	got := JoinSegmentText([]Segment{{Text: " one "}, {Text: ""}, {Text: "two"}})
	if got != "one two" {
		t.Fatalf("unexpected join %q", got)
	}
}

func TestCheckSegments(t *testing.T) {
	segs := []Segment{
		{Start: 0, End: 1},
		{Start: 2, End: 1.5},
		{Start: 1, End: 3},
		{Start: -1, End: 0},
	}
	violations := CheckSegments(segs)
	if len(violations) != 4 {
		t.Fatalf("expected 4 violations, got %v", violations)
	}
	if violations[0].Index != 1 || violations[0].Reason != "end before start" {
		t.Fatalf("unexpected first violation %v", violations[0])
	}
	if CheckSegments([]Segment{{Start: 0, End: 1}, {Start: 1, End: 2}}) != nil {
		t.Fatal("expected no violations for well-formed spans")
	}
}
