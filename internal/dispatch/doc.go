// Package dispatch admits recognition work through a bounded FIFO queue.
//
// The recognizer is single-occupancy, so the HTTP server routes every
// pipeline call through one Dispatcher (default concurrency 1). Waiters are
// admitted strictly in arrival order; a waiter whose context is cancelled
// leaves the queue without consuming a slot.
package dispatch
