package books

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/klauspost/compress/zstd"
	"github.com/shopspring/decimal"

	"github.com/Starzy87/stake-mines-backend/internal/games"
)

// GenerateOptions configures a math-book run.
type GenerateOptions struct {
	Mode      string
	Cost      decimal.Decimal
	Mines     int
	Count     int
	Picks     int
	Seeds     games.Seeds
	HouseEdge decimal.Decimal
}

// LookupFileName and BooksFileName are the publish names for mode.
func LookupFileName(mode string) string { return fmt.Sprintf("lookUpTable_%s_0.csv", mode) }

func BooksFileName(mode string) string { return fmt.Sprintf("books_%s.jsonl.zst", mode) }

// Simulate builds book id from the live board at nonce id. The player
// opens tiles in ascending index order until Picks safe tiles are open or
// a mine is hit.
func Simulate(id uint64, opts GenerateOptions, ladder games.Ladder) (*Book, error) {
	board, err := games.ReplayBoard(opts.Seeds, id, opts.Mines, nil)
	if err != nil {
		return nil, err
	}

	book := &Book{
		ID:        id,
		MineCount: opts.Mines,
		Mines:     board.Mines,
	}
	for tile := 0; tile < games.GridSize && len(book.Picks) < opts.Picks; tile++ {
		book.Picks = append(book.Picks, tile)
		if board.IsMine(tile) {
			return book, nil
		}
	}
	book.PayoutMultiplier = uint64(ladder.Step(len(book.Picks)) / (games.MultiplierScale / PayoutScale))
	return book, nil
}

// Generate writes the lookup table and the compressed books for one mode
// into dir and adds the mode to dir's index.json. Every book carries
// weight 1.
func Generate(dir string, opts GenerateOptions) (*Index, error) {
	if opts.Mode == "" {
		return nil, fmt.Errorf("mode name is required")
	}
	if opts.Count <= 0 {
		return nil, fmt.Errorf("count must be positive, got %d", opts.Count)
	}
	if opts.Cost.IsZero() {
		opts.Cost = decimal.NewFromInt(1)
	}
	if opts.HouseEdge.IsZero() {
		opts.HouseEdge = games.DefaultHouseEdge
	}
	ladder, err := games.ComputeLadder(opts.Mines, opts.HouseEdge)
	if err != nil {
		return nil, err
	}
	if opts.Picks < 1 || opts.Picks > len(ladder) {
		return nil, fmt.Errorf("picks must be between 1 and %d, got %d", len(ladder), opts.Picks)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	lookupF, err := os.Create(filepath.Join(dir, LookupFileName(opts.Mode)))
	if err != nil {
		return nil, err
	}
	defer lookupF.Close()
	booksF, err := os.Create(filepath.Join(dir, BooksFileName(opts.Mode)))
	if err != nil {
		return nil, err
	}
	defer booksF.Close()

	enc, err := zstd.NewWriter(booksF)
	if err != nil {
		return nil, err
	}
	lookup := csv.NewWriter(lookupF)
	lines := bufio.NewWriter(enc)

	for i := 1; i <= opts.Count; i++ {
		book, err := Simulate(uint64(i), opts, ladder)
		if err != nil {
			enc.Close()
			return nil, err
		}
		line, err := json.Marshal(book)
		if err != nil {
			enc.Close()
			return nil, err
		}
		lines.Write(line)
		lines.WriteByte('\n')

		if err := lookup.Write([]string{
			strconv.FormatUint(book.ID, 10),
			"1",
			strconv.FormatUint(book.PayoutMultiplier, 10),
		}); err != nil {
			enc.Close()
			return nil, err
		}
	}

	if err := lines.Flush(); err != nil {
		enc.Close()
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	lookup.Flush()
	if err := lookup.Error(); err != nil {
		return nil, err
	}

	idx, err := readIndex(dir)
	if err != nil {
		return nil, err
	}
	idx.put(IndexMode{
		Name:    opts.Mode,
		Cost:    opts.Cost.InexactFloat64(),
		Events:  BooksFileName(opts.Mode),
		Weights: LookupFileName(opts.Mode),
	})
	raw, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(dir, IndexFile), raw, 0o644); err != nil {
		return nil, err
	}
	return idx, nil
}

// readIndex returns the index already published in dir, or an empty one.
func readIndex(dir string) (*Index, error) {
	raw, err := os.ReadFile(filepath.Join(dir, IndexFile))
	if errors.Is(err, fs.ErrNotExist) {
		return &Index{}, nil
	}
	if err != nil {
		return nil, err
	}
	var idx Index
	if err := json.Unmarshal(raw, &idx); err != nil {
		return nil, fmt.Errorf("parse existing %s: %w", IndexFile, err)
	}
	return &idx, nil
}

// put replaces the entry named m.Name or appends m.
func (idx *Index) put(m IndexMode) {
	for i := range idx.Modes {
		if idx.Modes[i].Name == m.Name {
			idx.Modes[i] = m
			return
		}
	}
	idx.Modes = append(idx.Modes, m)
}
