package sale_order

// SyncPriority of orders in the retry queue. Orders go first: pickings
// and delivery notes reference them on the server.
const SyncPriority = "high"
