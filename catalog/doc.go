package catalog

// catalog fetches item details from the region-partitioned news catalog and
// converts them into saved records.
