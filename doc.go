// Package region reads, audits, and repairs the container files that
// persist a chunked game world, one file per 32x32 grid of chunks.
//
// A container file starts with two 4096-byte header tables: a location
// table mapping each grid cell to the sector range holding its chunk
// record, and a timestamp table. Chunk records are framed as a big-endian
// length, a compression tag, and an optionally gzip- or zlib-compressed
// NBT payload.
//
// Scan walks every referenced record, classifies structural anomalies
// (dangling pointers, bad framing, undecodable payloads, missing required
// fields), and can repair them in place: bookkeeping fixes rewrite single
// header fields, delete mode removes unrecoverable records, and a
// defragmentation pass compacts the freed sectors.
package region
