// Package captable deterministically aggregates equity data into a
// capitalization table. All share arithmetic uses exact decimal math;
// percentages round half-up to two places and the largest holder absorbs any
// rounding residual so the table always sums to exactly 100.00.
package captable
