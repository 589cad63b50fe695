package delivery_note

// SyncPriority of delivery notes in the retry queue.
const SyncPriority = "low"

// DefaultTransport is used when nothing is configured.
func DefaultTransport() Transport {
	return Transport{
		Reason:     "Vendita",
		Appearance: "Colli N.1",
		Condition:  "Porto Assegnato",
		Method:     "Destinatario",
		Packages:   "1",
	}
}
