// Package runlock serializes pipeline runs across processes. Exactly one
// run may execute at a time; the lock survives crashes via OS-level flock
// semantics and a holder info file used for dead-process detection and
// status reporting.
package runlock
