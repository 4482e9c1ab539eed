// Package issues runs compliance checks over the audited document set. The
// deterministic rules always run and never depend on the model; a single
// model pass adds softer findings on top, and its failure degrades to the
// deterministic results with a system warning rather than losing them.
package issues
