// Package language normalizes recognizer language hints and renders display
// names for detected languages.
package language
