// Package preview locates extracted values inside a document's positioned
// text spans and renders a translucent highlight overlay. The overlay is a
// standalone PNG in page coordinates; callers composite it over their own
// page rendering. Preview generation is strictly best-effort and never fails
// an extraction.
package preview
