// Package whisper owns the lifecycle of loaded Whisper models.
//
// Load starts an embedded Python helper for one (model, language, device,
// fp16) configuration and waits for its readiness report. Model.Recognize
// issues one request at a time and maps the raw segments into the transcript
// model; every recognition failure, including a panic in the engine, comes
// back as a failed transcript rather than an error. Registry caches loaded
// models for the lifetime of the process.
//
// Engines are created through a Launcher so tests can substitute an
// in-memory recognizer for the helper process.
package whisper
