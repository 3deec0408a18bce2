package books

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"

	"github.com/Starzy87/stake-mines-backend/internal/fault"
)

// IndexFile is the name of the publish index inside a publish directory.
const IndexFile = "index.json"

// maxBookLine bounds a single JSONL record.
const maxBookLine = 1 << 20

// Index describes the modes of a publish directory.
type Index struct {
	Modes []IndexMode `json:"modes"`
}

// IndexMode points at the lookup table and book file of one mode.
type IndexMode struct {
	Name    string  `json:"name"`
	Cost    float64 `json:"cost"`
	Events  string  `json:"events"`
	Weights string  `json:"weights"`
}

// Mode is a loaded book mode.
type Mode struct {
	Name  string
	Cost  decimal.Decimal
	Table *Table
}

// Library holds every mode of a publish directory. It is read-only after
// Load.
type Library struct {
	modes map[string]*Mode
	names []string
}

// Load reads index.json from dir and every lookup table and book file it
// references. Any missing file, unresolved id or payout mismatch fails the
// whole load.
func Load(dir string) (*Library, error) {
	const op = "books.Load"

	raw, err := os.ReadFile(filepath.Join(dir, IndexFile))
	if err != nil {
		return nil, fault.Integrity(op, fmt.Errorf("%w: %v", fault.ErrTableInvalid, err))
	}
	var idx Index
	if err := json.Unmarshal(raw, &idx); err != nil {
		return nil, fault.Integrity(op, fmt.Errorf("%w: parse %s: %v", fault.ErrTableInvalid, IndexFile, err))
	}
	if len(idx.Modes) == 0 {
		return nil, fault.Integrity(op, fmt.Errorf("%w: %s lists no modes", fault.ErrTableInvalid, IndexFile))
	}

	lib := &Library{modes: make(map[string]*Mode, len(idx.Modes))}
	var errs error
	for _, im := range idx.Modes {
		mode, err := loadMode(dir, im)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if _, dup := lib.modes[mode.Name]; dup {
			errs = multierr.Append(errs, fmt.Errorf("mode %q listed twice", mode.Name))
			continue
		}
		lib.modes[mode.Name] = mode
		lib.names = append(lib.names, mode.Name)
	}
	if errs != nil {
		return nil, fault.Integrity(op, fmt.Errorf("%w: %v", fault.ErrTableInvalid, errs))
	}
	sort.Strings(lib.names)
	return lib, nil
}

func loadMode(dir string, im IndexMode) (*Mode, error) {
	if im.Name == "" {
		return nil, errors.New("mode without a name")
	}
	if im.Cost <= 0 {
		return nil, fmt.Errorf("mode %q: cost must be positive, got %v", im.Name, im.Cost)
	}

	rows, err := readLookupFile(filepath.Join(dir, im.Weights))
	if err != nil {
		return nil, fmt.Errorf("mode %q: %w", im.Name, err)
	}
	books, err := readBooksFile(filepath.Join(dir, im.Events))
	if err != nil {
		return nil, fmt.Errorf("mode %q: %w", im.Name, err)
	}
	table, err := NewTable(im.Name, rows, books)
	if err != nil {
		return nil, err
	}
	return &Mode{Name: im.Name, Cost: decimal.NewFromFloat(im.Cost), Table: table}, nil
}

// Mode returns the named mode.
func (l *Library) Mode(name string) (*Mode, bool) {
	if l == nil {
		return nil, false
	}
	m, ok := l.modes[name]
	return m, ok
}

// Names lists the loaded modes in sorted order.
func (l *Library) Names() []string {
	if l == nil {
		return nil
	}
	return append([]string(nil), l.names...)
}

func readLookupFile(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("lookup table: %w", err)
	}
	defer f.Close()
	return ReadLookup(f)
}

// ReadLookup parses "id,weight,payoutMultiplier" records. A first record
// with no numeric field is a header and is skipped.
func ReadLookup(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var rows []Row
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("lookup table: %w", err)
		}
		if len(rec) < 3 {
			return nil, fmt.Errorf("lookup table line %d: want 3 fields, got %d", line, len(rec))
		}

		if line == 1 && isHeader(rec[:3]) {
			continue
		}
		id, err := strconv.ParseUint(strings.TrimSpace(rec[0]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("lookup table line %d: id: %w", line, err)
		}
		weight, err := strconv.ParseUint(strings.TrimSpace(rec[1]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("lookup table line %d: weight: %w", line, err)
		}
		payout, err := strconv.ParseUint(strings.TrimSpace(rec[2]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("lookup table line %d: payout: %w", line, err)
		}
		rows = append(rows, Row{ID: id, Weight: weight, Payout: payout})
	}
	return rows, nil
}

func readBooksFile(path string) (map[uint64]*Book, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("books: %w", err)
	}
	defer f.Close()

	if strings.HasSuffix(path, ".zst") {
		dec, err := zstd.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("books: %w", err)
		}
		defer dec.Close()
		return ReadBooks(dec)
	}
	return ReadBooks(f)
}

// bookLine is the wire form of a Book. The id and payout are pointers so
// an absent field is told apart from zero.
type bookLine struct {
	ID               *uint64 `json:"id"`
	PayoutMultiplier *uint64 `json:"payoutMultiplier"`
	MineCount        int     `json:"mineCount"`
	Mines            []int   `json:"mines"`
	Picks            []int   `json:"picks"`
}

// isHeader reports whether none of fields parses as an integer.
func isHeader(fields []string) bool {
	for _, f := range fields {
		if _, err := strconv.ParseUint(strings.TrimSpace(f), 10, 64); err == nil {
			return false
		}
	}
	return true
}

// ReadBooks parses one JSON book per line, keyed by id. Every line must
// carry an id and a payoutMultiplier.
func ReadBooks(r io.Reader) (map[uint64]*Book, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxBookLine)

	books := make(map[uint64]*Book)
	for line := 1; sc.Scan(); line++ {
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		var w bookLine
		if err := json.Unmarshal([]byte(text), &w); err != nil {
			return nil, fmt.Errorf("books line %d: %w", line, err)
		}
		if w.ID == nil {
			return nil, fmt.Errorf("books line %d: missing id", line)
		}
		if w.PayoutMultiplier == nil {
			return nil, fmt.Errorf("books line %d: missing payoutMultiplier", line)
		}
		b := Book{
			ID:               *w.ID,
			PayoutMultiplier: *w.PayoutMultiplier,
			MineCount:        w.MineCount,
			Mines:            w.Mines,
			Picks:            w.Picks,
		}
		if _, dup := books[b.ID]; dup {
			return nil, fmt.Errorf("books line %d: duplicate id %d", line, b.ID)
		}
		books[b.ID] = &b
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("books: %w", err)
	}
	return books, nil
}
