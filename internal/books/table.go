// Package books serves pre-generated outcomes ("books") by weighted
// selection from a published lookup table.
package books

import (
	"fmt"
	"math"
	"math/big"
	"math/bits"

	"go.uber.org/multierr"

	"github.com/Starzy87/stake-mines-backend/internal/fault"
	"github.com/Starzy87/stake-mines-backend/internal/games"
)

// PayoutScale is the fixed-point factor of book payouts: 1.00x == 100.
const PayoutScale = 100

// Row is one line of a lookup table.
type Row struct {
	ID     uint64
	Weight uint64
	Payout uint64
}

// Book is a fully simulated round. Mines is the board layout served to
// the player; Picks and PayoutMultiplier record the simulated play the
// row weight was derived from.
type Book struct {
	ID               uint64 `json:"id"`
	PayoutMultiplier uint64 `json:"payoutMultiplier"`
	MineCount        int    `json:"mineCount"`
	Mines            []int  `json:"mines"`
	Picks            []int  `json:"picks,omitempty"`
}

// Table is an immutable weighted outcome table for one mode. It is safe
// for concurrent use once built.
type Table struct {
	mode      string
	mineCount int
	rows      []Row
	books     map[uint64]*Book
	total     uint64
}

// NewTable validates rows against books and returns the table. Every
// fault found is reported, not only the first. The table keeps its own
// copies of rows and of the books they reference.
func NewTable(mode string, rows []Row, books map[uint64]*Book) (*Table, error) {
	const op = "books.NewTable"

	if len(rows) == 0 {
		return nil, fault.Integrity(op, fmt.Errorf("mode %q: %w: no lookup rows", mode, fault.ErrTableInvalid))
	}

	var (
		errs      error
		total     uint64
		overflow  bool
		mineCount = -1
	)
	for _, row := range rows {
		var carry uint64
		total, carry = bits.Add64(total, row.Weight, 0)
		if carry != 0 {
			overflow = true
		}

		book, ok := books[row.ID]
		if !ok {
			errs = multierr.Append(errs, fmt.Errorf("row %d: book not found", row.ID))
			continue
		}
		if book.PayoutMultiplier != row.Payout {
			errs = multierr.Append(errs, fmt.Errorf("row %d: %w (book=%d table=%d)",
				row.ID, fault.ErrPayoutMismatch, book.PayoutMultiplier, row.Payout))
		}
		if err := checkLayout(book); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("row %d: %w", row.ID, err))
			continue
		}
		if mineCount < 0 {
			mineCount = book.MineCount
		} else if book.MineCount != mineCount {
			errs = multierr.Append(errs, fmt.Errorf("row %d: mine count %d differs from %d", row.ID, book.MineCount, mineCount))
		}
	}
	if overflow {
		errs = multierr.Append(errs, fmt.Errorf("total weight overflows uint64"))
	} else if total == 0 {
		errs = multierr.Append(errs, fmt.Errorf("total weight is zero"))
	}
	if errs != nil {
		return nil, fault.Integrity(op, fmt.Errorf("mode %q: %w: %v", mode, fault.ErrTableInvalid, errs))
	}

	own := make(map[uint64]*Book, len(rows))
	for _, r := range rows {
		b := *books[r.ID]
		b.Mines = append([]int(nil), b.Mines...)
		b.Picks = append([]int(nil), b.Picks...)
		own[r.ID] = &b
	}

	return &Table{
		mode:      mode,
		mineCount: mineCount,
		rows:      append([]Row(nil), rows...),
		books:     own,
		total:     total,
	}, nil
}

func checkLayout(b *Book) error {
	if b.MineCount < games.MinMines || b.MineCount > games.MaxMines {
		return fmt.Errorf("mine count %d out of range", b.MineCount)
	}
	if len(b.Mines) != b.MineCount {
		return fmt.Errorf("has %d mines, declares %d", len(b.Mines), b.MineCount)
	}
	var seen [games.GridSize]bool
	for _, m := range b.Mines {
		if m < 0 || m >= games.GridSize {
			return fmt.Errorf("mine %d off the grid", m)
		}
		if seen[m] {
			return fmt.Errorf("mine %d listed twice", m)
		}
		seen[m] = true
	}
	return nil
}

// Mode returns the mode name the table was loaded for.
func (t *Table) Mode() string { return t.mode }

// MineCount is shared by every book of the table.
func (t *Table) MineCount() int { return t.mineCount }

// TotalWeight is the sum of all row weights.
func (t *Table) TotalWeight() uint64 { return t.total }

// Len returns the number of lookup rows.
func (t *Table) Len() int { return len(t.rows) }

// Select picks the book for the uniform draw u in [0,1).
//
// The target floor(u*total) is computed exactly and the first row whose
// cumulative weight exceeds it wins. A target past the end selects the
// last row. The selected row's payout is checked against its book before
// the book is returned.
func (t *Table) Select(u float64) (*Book, error) {
	const op = "books.Select"

	if math.IsNaN(u) || u < 0 || u >= 1 {
		return nil, fault.Newf(fault.KindInternal, op, "draw %v outside [0,1)", u)
	}

	target := t.target(u)

	row := t.rows[len(t.rows)-1]
	var acc uint64
	for _, r := range t.rows {
		acc += r.Weight
		if target < acc {
			row = r
			break
		}
	}

	book, ok := t.books[row.ID]
	if !ok {
		return nil, fault.Integrity(op, fmt.Errorf("mode %q row %d: %w: book missing", t.mode, row.ID, fault.ErrTableInvalid))
	}
	if book.PayoutMultiplier != row.Payout {
		return nil, fault.Integrity(op, fmt.Errorf("mode %q row %d: %w (book=%d table=%d)",
			t.mode, row.ID, fault.ErrPayoutMismatch, book.PayoutMultiplier, row.Payout))
	}
	return book, nil
}

// target returns floor(u * total). A float64 mantissa times a uint64 fits
// in 117 bits, so 128 bits of precision keep the product exact.
func (t *Table) target(u float64) uint64 {
	prod := new(big.Float).SetPrec(128).SetFloat64(u)
	prod.Mul(prod, new(big.Float).SetPrec(128).SetUint64(t.total))
	n, _ := prod.Uint64()
	return n
}
