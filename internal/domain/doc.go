// Package domain holds the core entities of the code generation pipeline:
// requests, sessions, code artifacts, critic reviews and rankings, plus the
// status machine, error taxonomy and prompt payloads shared by all layers.
package domain
