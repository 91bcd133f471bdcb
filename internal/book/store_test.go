package book

import (
	"testing"

	"main/internal/model"
	"main/internal/model/enum"
	"main/pkg/exception"
)

func level(price int64, amount int64) model.BookLevel {
	return model.BookLevel{
		Price:  model.Price(price),
		Amount: model.Quantity(amount),
		Total:  model.Quantity(amount),
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	if _, err := New(0, 10); err != exception.ErrBookInvalidDepth {
		t.Fatalf("depth 0: got %v want ErrBookInvalidDepth", err)
	}
	if _, err := New(8, 0); err != exception.ErrBookInvalidTradeCapacity {
		t.Fatalf("trade cap 0: got %v want ErrBookInvalidTradeCapacity", err)
	}
}

func TestApplyKeepsLadderInvariants(t *testing.T) {
	store, err := New(4, 10)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	bids := []model.BookLevel{
		level(100_000_000, 1_000_000),
		level(99_000_000, 2_000_000),
	}
	asks := []model.BookLevel{
		level(101_000_000, 1_000_000),
		level(102_000_000, 2_000_000),
		level(103_000_000, 1_000_000),
		level(104_000_000, 1_000_000),
		level(105_000_000, 1_000_000),
	}

	snap := store.Apply(model.MarketTick{Seq: 1}, bids, asks, nil)

	if len(snap.Bids) != 4 || len(snap.Asks) != 4 {
		t.Fatalf("ladder length: got %d/%d want 4/4", len(snap.Bids), len(snap.Asks))
	}
	for i := 1; i < len(snap.Bids); i++ {
		if snap.Bids[i].Price >= snap.Bids[i-1].Price {
			t.Fatalf("bids not strictly descending at %d: %v >= %v", i, snap.Bids[i].Price, snap.Bids[i-1].Price)
		}
	}
	for i := 1; i < len(snap.Asks); i++ {
		if snap.Asks[i].Price <= snap.Asks[i-1].Price {
			t.Fatalf("asks not strictly ascending at %d: %v <= %v", i, snap.Asks[i].Price, snap.Asks[i-1].Price)
		}
	}
	if snap.Asks[3].Price != model.Price(104_000_000) {
		t.Fatalf("ask truncation: got %v want 104", snap.Asks[3].Price)
	}
}

func TestTradeRingEvictsOldest(t *testing.T) {
	store, err := New(2, 3)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	for i := 1; i <= 5; i++ {
		store.Apply(model.MarketTick{Seq: uint64(i)}, nil, nil, []model.Trade{
			{ID: uint64(i), Side: enum.OrderSideBuy},
		})
	}

	snap := store.Snapshot()
	if len(snap.Trades) != 3 {
		t.Fatalf("trade ring length: got %d want 3", len(snap.Trades))
	}
	for i, want := range []uint64{3, 4, 5} {
		if snap.Trades[i].ID != want {
			t.Fatalf("trade ring order: got %d at %d want %d", snap.Trades[i].ID, i, want)
		}
	}
}

func TestSnapshotImmutableAcrossApply(t *testing.T) {
	store, err := New(2, 4)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	first := store.Apply(model.MarketTick{Seq: 1}, []model.BookLevel{level(10, 1)}, []model.BookLevel{level(11, 1)}, []model.Trade{{ID: 1}})
	store.Apply(model.MarketTick{Seq: 2}, []model.BookLevel{level(20, 1)}, []model.BookLevel{level(21, 1)}, []model.Trade{{ID: 2}})

	if first.Tick.Seq != 1 {
		t.Fatalf("old snapshot mutated: seq %d", first.Tick.Seq)
	}
	if len(first.Trades) != 1 || first.Trades[0].ID != 1 {
		t.Fatalf("old snapshot trades mutated: %+v", first.Trades)
	}
	if first.Bids[0].Price != model.Price(10) {
		t.Fatalf("old snapshot bids mutated: %+v", first.Bids)
	}
}
