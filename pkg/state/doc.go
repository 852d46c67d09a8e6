// Package state provides persistence providers for option sets.
//
// Two families are offered:
//   - FileProvider stores one set per file, either in the `key=value`
//     properties format (NewFileProvider) or as a JSON object (NewJSONProvider).
//     Both implement opts.StreamProvider.
//   - StoreProvider adapts any Store (MemoryStore here, bolt and redis in the
//     sub-packages) keyed by Ref.Identifier().
//
// Every provider stages what it reads and hands it to opts.ApplyStaged, and
// renders what it writes with opts.CollectEntries, so conversion atomicity,
// error suppression and the non-default filter behave the same everywhere.
//
// Data flow:
//
//	Store/File -> staged key/text map -> opts.ApplyStaged -> *opts.Set
//	*opts.Set -> opts.CollectEntries -> Record/File
//
// Concurrency:
//
//	Stores stamp every save with Meta (uuid snapshot ID, content ETag, time).
//	With WithOptimisticLocking the provider sends the ETag it last saw, and a
//	store that holds a different one rejects the save with ErrETagMismatch.
package state
