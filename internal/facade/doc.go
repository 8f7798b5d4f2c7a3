// Package facade owns the uniform device contract and error vocabulary.
//
// Ownership boundary:
// - Backend interface (two conforming implementations: vice, ultimate)
// - shared result shapes
// - caller-facing error taxonomy
package facade
