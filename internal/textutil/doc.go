// Package textutil provides string similarity and sanitization helpers shared
// across the pipeline.
package textutil
