// Package api serves the transcription pipeline over HTTP.
//
// Endpoints:
//   - POST /api/transcribe: multipart upload, JSON result
//   - POST /api/generate-subtitles: multipart upload, raw SRT/VTT or JSON
//   - GET /api/status: dispatcher counters, loaded models, dependency health
//   - GET /metrics: Prometheus exposition
//
// Uploads land in a per-request temp directory under paths.work_dir that is
// removed on every exit path. Pipeline calls are admitted through a
// dispatch.Dispatcher so the recognizer sees one request at a time.
package api
