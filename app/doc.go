package app

// app wires the configured storage media, backend clients, and sync service
// together for one run of the command-line tool. The e2e tests use it to
// exercise the same wiring.
