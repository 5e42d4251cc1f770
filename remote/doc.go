package remote

// remote talks to the authenticated saved-items API. Every failure, whether
// network, timeout, auth, or a bad status, surfaces as ErrRemoteUnavailable so
// that callers can fall back to local-only behavior.
