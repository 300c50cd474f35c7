// Package tokenstore persists the token bundle of each browser session.
//
// Three backends implement Store:
//
//   - MemoryStore keeps records in process memory (single instance, tests).
//   - RedisStore keeps records in redis with a TTL, shared by all instances.
//   - PostgresStore keeps records in a postgres table.
//
// Every backend stores the JSON record defined by package token, optionally
// sealed with AES-256-GCM (see Sealer). A record that cannot be opened or
// decoded is reported as token.ErrMalformed so the caller can discard it.
//
// RedisLocker serializes refreshes of the same session across instances.
package tokenstore
