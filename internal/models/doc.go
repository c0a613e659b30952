// Package models defines the provider-independent calendar types shared by the
// scheduling engine and its collaborators.
//
// An Event always carries start and end instants with an explicit location, so
// the engine never has to guess which day boundary a time belongs to. Patches
// are partial start/end overrides buffered by the pending change store; applying
// a patch returns a new Event and never mutates the base value.
package models
