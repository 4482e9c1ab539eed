// Package parserunner isolates document parsing in a child process so a
// crashing or hanging parse cannot take down the pipeline. The runner
// re-executes the current binary with a hidden subcommand, reads the JSON
// parse result from stdout, and degrades to an error result on timeout or
// crash instead of failing the audit.
package parserunner
