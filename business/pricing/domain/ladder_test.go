package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func lvl(price, amount string) PriceLevel {
	return PriceLevel{
		Price:  decimal.RequireFromString(price),
		Amount: decimal.RequireFromString(amount),
	}
}

func TestBuildLadder_SortsAndAccumulates(t *testing.T) {
	book := Book{
		Asks: []PriceLevel{lvl("0.007", "300"), lvl("0.005", "100"), lvl("0.006", "200")},
		Bids: []PriceLevel{lvl("0.003", "50"), lvl("0.004", "10"), lvl("0", "99"), lvl("0.002", "-1")},
	}

	ladder := BuildLadder(book)

	wantAsks := []struct{ price, lotPrice, lotAmount string }{
		{"0.005", "0.5", "100"},
		{"0.006", "1.7", "300"},
		{"0.007", "3.8", "600"},
	}
	if len(ladder.Asks) != len(wantAsks) {
		t.Fatalf("expected %d asks, got %d", len(wantAsks), len(ladder.Asks))
	}
	for i, want := range wantAsks {
		r := ladder.Asks[i]
		if !r.LevelPrice.Equal(decimal.RequireFromString(want.price)) {
			t.Errorf("ask %d: expected price %s, got %s", i, want.price, r.LevelPrice)
		}
		if !r.LotPrice.Equal(decimal.RequireFromString(want.lotPrice)) {
			t.Errorf("ask %d: expected lotPrice %s, got %s", i, want.lotPrice, r.LotPrice)
		}
		if !r.LotAmount.Equal(decimal.RequireFromString(want.lotAmount)) {
			t.Errorf("ask %d: expected lotAmount %s, got %s", i, want.lotAmount, r.LotAmount)
		}
	}

	if len(ladder.Bids) != 2 {
		t.Fatalf("expected non-positive levels to be dropped, got %d bids", len(ladder.Bids))
	}
	if !ladder.Bids[0].LevelPrice.Equal(decimal.RequireFromString("0.004")) {
		t.Errorf("expected best bid first, got %s", ladder.Bids[0].LevelPrice)
	}
	if !ladder.Bids[1].LotAmount.Equal(decimal.RequireFromString("60")) {
		t.Errorf("expected cumulative bid amount 60, got %s", ladder.Bids[1].LotAmount)
	}
}

func TestBuildLadder_CumulativeNeverDecreases(t *testing.T) {
	ladder := BuildLadder(Book{
		Asks: []PriceLevel{lvl("3", "1"), lvl("1", "2"), lvl("2", "0.5"), lvl("1", "4")},
	})
	for i := 1; i < len(ladder.Asks); i++ {
		prev, cur := ladder.Asks[i-1], ladder.Asks[i]
		if cur.LotAmount.LessThan(prev.LotAmount) || cur.LotPrice.LessThan(prev.LotPrice) {
			t.Fatalf("rung %d decreased: %+v after %+v", i, cur, prev)
		}
		if cur.LevelPrice.LessThan(prev.LevelPrice) {
			t.Fatalf("asks not ascending at %d", i)
		}
	}
}

func TestNormalize(t *testing.T) {
	t.Run("nil book is unavailable", func(t *testing.T) {
		_, err := Normalize(nil, false)
		if !errors.Is(err, ErrMarketUnavailable) {
			t.Fatalf("expected ErrMarketUnavailable, got %v", err)
		}
	})

	t.Run("empty book is an empty ladder", func(t *testing.T) {
		ladder, err := Normalize(&Book{}, false)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(ladder.Asks) != 0 || len(ladder.Bids) != 0 {
			t.Errorf("expected empty ladder, got %+v", ladder)
		}
	})

	t.Run("inverted book swaps sides", func(t *testing.T) {
		// WETH-DAI style: price is DAI per WETH, amount in WETH.
		book := &Book{
			Asks: []PriceLevel{lvl("200", "2")},
			Bids: []PriceLevel{lvl("100", "1")},
		}
		ladder, err := Normalize(book, true)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		// The WETH bid at 100 DAI becomes a DAI ask at 0.01 WETH for 100 DAI.
		if len(ladder.Asks) != 1 || !ladder.Asks[0].LevelPrice.Equal(decimal.RequireFromString("0.01")) {
			t.Fatalf("unexpected asks: %+v", ladder.Asks)
		}
		if !ladder.Asks[0].LevelAmount.Equal(decimal.RequireFromString("100")) {
			t.Errorf("expected 100 DAI on the ask, got %s", ladder.Asks[0].LevelAmount)
		}
		if len(ladder.Bids) != 1 || !ladder.Bids[0].LevelAmount.Equal(decimal.RequireFromString("400")) {
			t.Errorf("unexpected bids: %+v", ladder.Bids)
		}
	})
}

func TestBook_DoubleInversionRoundTrip(t *testing.T) {
	book := Book{
		Asks: []PriceLevel{lvl("0.005", "100"), lvl("0.006", "200"), lvl("0.007", "300")},
		Bids: []PriceLevel{lvl("0.0045", "80"), lvl("0.0031", "17.5")},
	}
	tolerance := decimal.New(1, -12)

	once := book.Invert()
	if len(once.Asks) != len(book.Bids) || len(once.Bids) != len(book.Asks) {
		t.Fatalf("expected sides to swap, got %d asks / %d bids", len(once.Asks), len(once.Bids))
	}

	twice := once.Invert()
	check := func(side string, got, want []PriceLevel) {
		if len(got) != len(want) {
			t.Fatalf("%s: expected %d levels, got %d", side, len(want), len(got))
		}
		for i := range want {
			if got[i].Price.Sub(want[i].Price).Abs().GreaterThan(tolerance) {
				t.Errorf("%s %d: price %s drifted from %s", side, i, got[i].Price, want[i].Price)
			}
			if got[i].Amount.Sub(want[i].Amount).Abs().GreaterThan(tolerance) {
				t.Errorf("%s %d: amount %s drifted from %s", side, i, got[i].Amount, want[i].Amount)
			}
		}
	}
	check("asks", twice.Asks, book.Asks)
	check("bids", twice.Bids, book.Bids)
}
