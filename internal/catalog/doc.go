// Package catalog defines the Artist entity shared by the store and the
// rotation core.
//
// Only the fields the featured-artist rotation needs are modelled here, plus
// the handful of descriptive fields the CLI prints. Catalog CRUD, tracks and
// search live outside this module.
//
// # Identity
//
// Artists have two identifiers:
//   - ID: the store-assigned integer key. It is totally ordered and is the
//     tie-break for every ordering in the rotation core.
//   - ArtistID: a public UUIDv7, stable across exports and reseeds.
//
// # Names
//
// Names are trimmed and NFC-normalised before they are stored, so the same
// name typed with composed or decomposed accents maps to one artist.
package catalog
