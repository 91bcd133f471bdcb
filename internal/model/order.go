package model

import "main/internal/model/enum"

// Order is the lifecycle engine's record of a submitted order.
// Amount and FilledAmount are quote-currency denominated.
type Order struct {
	ID           uint64
	Symbol       string
	Type         enum.OrderType
	Side         enum.OrderSide
	Tier         enum.Tier
	Amount       Notional
	FilledAmount Notional
	LimitPrice   Price
	StopPrice    Price
	FillPrice    Price
	Leverage     int
	Status       enum.OrderStatus
	SubmitSeq    uint64
	CreatedNano  int64
	UpdatedNano  int64
}

// IsOpen reports whether the order still participates in fill evaluation.
func (o *Order) IsOpen() bool {
	return o.Status.IsOpen()
}
