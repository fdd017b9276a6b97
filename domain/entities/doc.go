// Package entities provides core domain entities for capgate.
// These are plain types shared by the load gate, the module loader and the
// host runtime. They carry no policy of their own.
package entities
