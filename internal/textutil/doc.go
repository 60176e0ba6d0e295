// Package textutil provides filename sanitization for uploaded audio and for
// model lock files.
package textutil
