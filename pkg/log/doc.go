/*
Package log provides structured logging for the store using zerolog.

	┌──────────────────── LOGGING SYSTEM ──────────────────────┐
	│                                                            │
	│  Global Logger (zerolog.Logger, initialized via Init)      │
	│         │                                                  │
	│  Configuration: Level, JSONOutput, Output                  │
	│         │                                                  │
	│  Component loggers:                                        │
	│    - WithComponent("cache" | "ledger" | "api")             │
	│    - WithBucketKey(key)                                    │
	│    - WithAccountID(id)                                     │
	│    - WithProvider("json" | "binary")                       │
	│         │                                                  │
	│  Output: JSON (production) or console (development)        │
	└────────────────────────────────────────────────────────────┘

Do not log the raw plaintext of an encrypted bucket or the AES key.
*/
package log
