package pipeline

// EventKind names a side-channel event.
type EventKind string

const (
	// EventNormalizationFallback fires when conversion failed and the
	// original input was handed to the recognizer.
	EventNormalizationFallback EventKind = "normalization_fallback"
	// EventCacheHit fires when a cached transcript replaced recognition.
	EventCacheHit EventKind = "cache_hit"
	EventRecognitionFailed EventKind = "recognition_failed"
)

// Event is emitted through the hook registered with WithEventHook.
type Event struct {
	Kind   EventKind
	JobID  string
	Source string
	Detail string
}

func (s *Service) emit(evt Event) {
	if s.hook != nil {
		s.hook(evt)
	}
}
