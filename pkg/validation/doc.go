// Package validation provides input validation for user-supplied flow
// references: identifier syntax checks and path containment for flow files
// resolved against the flows directory.
package validation
