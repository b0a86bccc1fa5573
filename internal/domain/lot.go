package domain

import "time"

// LotHistoryEntry records a lot-size change for a symbol effective as of a
// date; the current lot size used by the risk engine lives on Symbol, this
// table only backs historical/effective-as-of lookups.
type LotHistoryEntry struct {
	ID          int64
	SymbolID    int64
	LotSize     int64
	EffectiveAt time.Time
}
