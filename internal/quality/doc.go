// Package quality builds the gate report that decides whether an audit needs
// manual review. Every counter feeds a blocking reason; any blocking reason
// forces review.
package quality
