package model

// Position is the ledger's valuation of one asset.
// Quantity is base-denominated and signed: positive means long.
type Position struct {
	Symbol           string
	Quantity         Quantity
	AvgEntryPrice    Price
	CurrentPrice     Price
	UnrealizedPnl    Notional
	UnrealizedPnlBps Bps
}
