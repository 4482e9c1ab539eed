// Package approval links equity events to the board documents that authorize
// them. Matching starts from conservative defaults, escalates to CRITICAL
// when no approval documents exist at all, and otherwise asks the model once
// for the whole batch. Model answers referencing documents outside the
// approval manifest are rejected and annotated rather than trusted.
package approval
