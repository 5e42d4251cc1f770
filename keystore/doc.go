package keystore

// keystore holds the ordered list of saved keys in a small, size-bounded blob
// that travels with requests (a cookie, in production). It owns the trimming
// policy that keeps the blob under budget: the oldest keys are dropped first.
