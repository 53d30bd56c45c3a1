// Package manifest builds the immutable index that maps content hashes to
// canonical output paths.
//
// An index is built once from a sequence of records, typically read from an
// SMDB text file with [ReadSMDB], and is read-only afterwards.
//
// # Duplicate hashes
//
// When several records share a hash, exactly one survives. Records are
// ordered by their tail key (the output path followed by any auxiliary
// fields, joined by tabs) in descending order and inserted in that order,
// each insert replacing the previous one. The record with the
// lexicographically smallest tail key therefore wins; records with identical
// tail keys resolve to the last one in input order.
package manifest
