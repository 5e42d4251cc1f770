package recordcache

// recordcache keeps full saved records, keyed by saved key, in a larger
// storage medium that doesn't travel with requests. The cache has no eviction
// policy of its own. Records leave it when their keys leave the key store.
