// Package ports defines the interfaces capgate's domain depends on.
// The load gate, the module catalog and the host runtime talk to each other
// only through these, so any of them can be swapped for a stub in tests.
package ports
