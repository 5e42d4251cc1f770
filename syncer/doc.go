package syncer

// syncer produces the saved list on each load. It migrates legacy data,
// reconciles the local key store with the server's saved set when someone is
// signed in, hydrates records the cache lacks, and returns the records newest
// first. It also implements the save/unsave toggle.
//
// Nothing here surfaces a sync failure to the caller. Remote and catalog
// errors are logged, counted, and replaced by local-only behavior.
