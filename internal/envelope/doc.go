// Package envelope owns the chat log entry model.
//
// Ownership boundary:
// - variant taxonomy and wire tags
// - content validity rules
// - canonical JSON encoding
//
// Construction, validation and encoding are separate steps. An invalid
// envelope may exist in memory; callers that persist envelopes must call
// Validate first.
package envelope
