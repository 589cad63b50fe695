package stock_picking

// SyncPriority of pickings in the retry queue.
const SyncPriority = "normal"

// Default stock locations of generated moves.
const (
	DefaultLocation     = "stock"
	DefaultLocationDest = "customer"
)
