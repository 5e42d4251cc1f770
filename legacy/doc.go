package legacy

// legacy migrates the old saved-items format, an unbounded array of full
// records kept in the large client store, into the key store and record
// cache. Migration deletes the old blob, so running it again is a no-op.
