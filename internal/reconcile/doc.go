// Package reconcile turns a set of delimited-text files with differing
// headers into a stream of column-uniform batches.
//
// A run has two phases. Discover reads only the header of every file and
// builds the presence matrix over the ordered union of their columns.
// Combine then reads the readable files one at a time in bounded chunks,
// reindexes each chunk to the union (absent columns become null cells), runs
// the optional transform and yields the batches in input order.
//
// Memory stays bounded by one chunk of one file: at most one input is open
// at a time while combining.
package reconcile
