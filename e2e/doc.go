package e2e

// e2e contains integration tests and utility code required to set up
// dependencies: a fake backend that serves both the catalog and the saved-items
// API, and a temporary BadgerDB directory. (These were intended to be
// end-to-end tests but became integration tests instead, hence the name.)
