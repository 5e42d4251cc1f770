package saved

// saved defines the identifiers and denormalized records that the rest of the
// application passes around. Keys and records are validated here, at the point
// where they are decoded from storage or from the network, so that downstream
// packages can trust their shape.
