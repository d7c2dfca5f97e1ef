/*
Package storage implements BucketSource: reading and writing one bucket's
files for a given key, behind a provider-agnostic interface.

	┌──────────────────── BUCKET SOURCES ───────────────────────┐
	│                                                            │
	│  JSONSource                                                │
	│    <root>/dates/<key>/*.json  — JSON array of operations   │
	│                                                            │
	│  BinarySource                                              │
	│    <root>/dates/<key>.bin     — AES-256-GCM, one file       │
	│    plaintext: uint64 count, then fixed-width records        │
	│                                                            │
	│  Both: Save writes to a uuid-suffixed temp file in the      │
	│  same directory, fsyncs, then renames over the target.      │
	│  JSONSource deletes the bucket's old files first.           │
	└────────────────────────────────────────────────────────────┘
*/
package storage
