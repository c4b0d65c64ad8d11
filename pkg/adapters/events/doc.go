// Package events provides event bus implementations for session lifecycle
// events.
//
// Implementations:
//   - redis: Redis Streams with consumer groups
//   - memory: In-memory for testing
package events
