package course

import "errors"

// Sentinel errors shared across the retrieval pipeline.
// Check with errors.Is().
var (
	// ErrCourseNotFound indicates a fuzzy course name could not be resolved
	// against the catalog. The tool layer downgrades this to a textual
	// observation; it is never surfaced to the generation service as a
	// hard failure.
	ErrCourseNotFound = errors.New("course not found")

	// ErrUnknownTool indicates the generation service requested a tool name
	// that was never registered. This is a configuration defect and fails
	// the turn loudly.
	ErrUnknownTool = errors.New("unknown tool")

	// ErrGeneration indicates a transport, auth or quota failure talking to
	// the generation service. It aborts the query; no automatic retry.
	ErrGeneration = errors.New("generation service error")
)
