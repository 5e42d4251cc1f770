package auth

// auth supplies the bearer token for the signed-in person. The sync engine
// only needs to know whether a usable token exists; verifying it is the
// server's job.
