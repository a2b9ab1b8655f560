package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"
)

// RawRow holds the cell values of one worksheet row. Index 0 is column A.
type RawRow []string

// Batch is the rows read from one export file.
type Batch struct {
	Name string
	Rows []RawRow
}

const (
	// DefaultSheet is the worksheet the portal writes employees to.
	DefaultSheet = "Sheet1"

	// DefaultHeaderRows is the number of layout rows above the data.
	DefaultHeaderRows = 6
)

// ErrNoExport is returned when the directory holds no export file.
var ErrNoExport = errors.New("no export file found")

// Reader lists and reads export workbooks from a directory.
type Reader struct {
	dir        string
	sheet      string
	headerRows int
	logger     *slog.Logger
}

// Option configures a Reader.
type Option func(*Reader)

// WithSheet sets the worksheet name.
func WithSheet(name string) Option {
	return func(r *Reader) {
		if name != "" {
			r.sheet = name
		}
	}
}

// WithHeaderRows sets how many leading rows are skipped.
func WithHeaderRows(n int) Option {
	return func(r *Reader) {
		if n >= 0 {
			r.headerRows = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Reader) {
		r.logger = l
	}
}

// NewReader creates a Reader over dir.
func NewReader(dir string, opts ...Option) *Reader {
	r := &Reader{
		dir:        dir,
		sheet:      DefaultSheet,
		headerRows: DefaultHeaderRows,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Dir returns the download directory.
func (r *Reader) Dir() string {
	return r.dir
}

// List returns the export file names in the directory, in lexical order.
// A missing directory lists as empty.
func (r *Reader) List() ([]string, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list exports in %s: %w", r.dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !IsExportFile(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Clear removes every export file from the directory and returns how many
// were removed. Other files are left alone.
func (r *Reader) Clear() (int, error) {
	names, err := r.List()
	if err != nil {
		return 0, err
	}
	for i, name := range names {
		if err := os.Remove(filepath.Join(r.dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return i, fmt.Errorf("remove export %s: %w", name, err)
		}
	}
	return len(names), nil
}

// IsExportFile reports whether name looks like a complete export workbook.
func IsExportFile(name string) bool {
	if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "~$") {
		return false
	}
	lower := strings.ToLower(name)
	for _, suffix := range []string{".crdownload", ".tmp", ".part"} {
		if strings.HasSuffix(lower, suffix) {
			return false
		}
	}
	return strings.HasSuffix(lower, ".xlsx")
}

// ReadFile reads the data rows of one workbook.
func (r *Reader) ReadFile(name string) ([]RawRow, error) {
	path := filepath.Join(r.dir, name)
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open export %s: %w", name, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			r.logger.Warn("close export failed", "file", name, "error", cerr)
		}
	}()

	rows, err := f.GetRows(r.sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q of %s: %w", r.sheet, name, err)
	}
	if len(rows) <= r.headerRows {
		return []RawRow{}, nil
	}
	out := make([]RawRow, 0, len(rows)-r.headerRows)
	for _, cells := range rows[r.headerRows:] {
		out = append(out, RawRow(cells))
	}
	return out, nil
}

// ReadAll reads every export file in listing order.
// It returns ErrNoExport when the directory holds none.
func (r *Reader) ReadAll(ctx context.Context) ([]Batch, error) {
	names, err := r.List()
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoExport, r.dir)
	}
	batches := make([]Batch, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rows, err := r.ReadFile(name)
		if err != nil {
			return nil, err
		}
		r.logger.Debug("read export", "file", name, "rows", len(rows))
		batches = append(batches, Batch{Name: name, Rows: rows})
	}
	return batches, nil
}
