package httpapi

// httpapi handles JSON requests to the backend, including request
// correlation, bearer authentication, and per-call timeouts. The remote
// saved-set client and the catalog client are both built on it.
