// Package journal persists terminal orders and their fills to
// postgres. Writes happen off the tick path through a small buffered
// queue; a full queue drops the entry rather than stalling the engine.
package journal

import (
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"gorm.io/gorm/clause"

	"main/internal/model"
	"main/internal/model/enum"
	"main/pkg/conn"
)

const queueSize = 256

// OrderRecord is one terminal order row. Monetary columns are micros.
type OrderRecord struct {
	ID           uint64 `gorm:"primaryKey"`
	Symbol       string `gorm:"size:32;index"`
	Type         string `gorm:"size:16"`
	Side         string `gorm:"size:8"`
	Tier         string `gorm:"size:16"`
	Amount       int64
	FilledAmount int64
	LimitPrice   int64
	StopPrice    int64
	FillPrice    int64
	Leverage     int
	Status       string `gorm:"size:16;index"`
	SubmitSeq    uint64
	CreatedNano  int64
	UpdatedNano  int64
}

func (OrderRecord) TableName() string { return "order_journal" }

// FillRecord is one executed fill row, written for filled orders only.
type FillRecord struct {
	OrderID uint64 `gorm:"primaryKey"`
	Symbol  string `gorm:"size:32;index"`
	Side    string `gorm:"size:8"`
	Amount  int64
	Price   int64
	TsNano  int64
}

func (FillRecord) TableName() string { return "fill_journal" }

// Journal is an async writer of terminal orders.
type Journal struct {
	client *conn.Client
	ch     chan model.Order
	done   chan struct{}
}

// Open connects, migrates both tables and starts the writer. An empty
// dsn disables the journal and returns nil without error.
func Open(dsn string) (*Journal, error) {
	if dsn == "" {
		return nil, nil
	}

	client, err := conn.New(conn.Option{ConnString: dsn})
	if err != nil {
		return nil, errors.Wrap(err, "open journal db")
	}
	if err := client.DB().AutoMigrate(&OrderRecord{}, &FillRecord{}); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "migrate journal tables")
	}

	j := &Journal{
		client: client,
		ch:     make(chan model.Order, queueSize),
		done:   make(chan struct{}),
	}
	go j.run()
	return j, nil
}

// OrderClosed enqueues a terminal order for persistence. Never blocks;
// a full queue loses the entry.
func (j *Journal) OrderClosed(order model.Order) {
	if j == nil {
		return
	}
	select {
	case j.ch <- order:
	default:
		logs.Errorf("journal queue full, dropped order %d", order.ID)
	}
}

// Close drains the queue and closes the pool.
func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	close(j.ch)
	<-j.done
	return j.client.Close()
}

func (j *Journal) run() {
	defer close(j.done)
	for order := range j.ch {
		j.write(order)
	}
}

func (j *Journal) write(order model.Order) {
	db := j.client.DB()

	record := OrderRecord{
		ID:           order.ID,
		Symbol:       order.Symbol,
		Type:         order.Type.String(),
		Side:         order.Side.String(),
		Tier:         order.Tier.String(),
		Amount:       int64(order.Amount),
		FilledAmount: int64(order.FilledAmount),
		LimitPrice:   int64(order.LimitPrice),
		StopPrice:    int64(order.StopPrice),
		FillPrice:    int64(order.FillPrice),
		Leverage:     order.Leverage,
		Status:       order.Status.String(),
		SubmitSeq:    order.SubmitSeq,
		CreatedNano:  order.CreatedNano,
		UpdatedNano:  order.UpdatedNano,
	}
	if err := db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&record).Error; err != nil {
		logs.Errorf("journal order %d, err: %+v", order.ID, err)
		return
	}

	if order.Status != enum.OrderStatusFilled {
		return
	}
	fill := FillRecord{
		OrderID: order.ID,
		Symbol:  order.Symbol,
		Side:    order.Side.String(),
		Amount:  int64(order.FilledAmount),
		Price:   int64(order.FillPrice),
		TsNano:  order.UpdatedNano,
	}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&fill).Error; err != nil {
		logs.Errorf("journal fill %d, err: %+v", order.ID, err)
	}
}
