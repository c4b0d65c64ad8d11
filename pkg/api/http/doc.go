// Package http provides the REST API surface for creating generation
// requests and reading session status and assembled results.
package http
