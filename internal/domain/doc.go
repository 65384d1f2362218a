// Package domain defines the core domain types shared by the relay, the discovery beacon and the
// transport front ends.
//
// Keeps only contracts and value types: the server notification payload and the sentinel errors.
// No implementation code lives here.
package domain
