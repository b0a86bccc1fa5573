package domain

import "time"

// TradingControl is the single-row (id=1) kill switch the health monitor
// and operators use to halt trading without stopping any daemon. Missing
// rows default both flags to true (trading fully enabled).
type TradingControl struct {
	ID                 int64
	AllowTrading       bool
	AllowNewPositions  bool
	Comment            string
	UpdatedAt          time.Time
}
