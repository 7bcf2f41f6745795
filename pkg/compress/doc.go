// Package compress shrinks outbound notification payloads for bandwidth
// sensitive channels.
//
// An Optimizer applies, in order: per-channel truncation of title and body,
// elision of null and empty fields, field-name shortening, and zstd
// compression. Compression is kept only when it saves at least the
// configured share of the encoded size; otherwise the plain JSON is sent.
//
// Decode reverses the process for consumers and tests.
package compress
