// Package transcript holds the in-memory result of one recognition call: the
// full text, the detected or forced language, and the ordered timed segments.
//
// Values are built once from recognizer output and treated as read-only
// afterwards. Segment order is the recognizer's emission order; this package
// never re-sorts or repairs spans, it only reports contract violations through
// CheckSegments so callers can log them.
package transcript
