package storage

// storage contains the KeyValue interface for the persistent media that hold
// saved-item state, along with implementations for BadgerDB, an in-memory map,
// and a cookie jar. Note that the storage package isn't designed to represent
// _what_ is stored, and deals only in opaque binary blobs that callers read
// and write whole.
