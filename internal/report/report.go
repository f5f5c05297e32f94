// internal/report/report.go
package report

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strconv"
	"time"

	"github.com/rovshanmuradov/launchpad/internal/events"
	"github.com/rovshanmuradov/launchpad/internal/journal"
	"github.com/rovshanmuradov/launchpad/internal/types"
	"go.uber.org/zap"
)

// Format is the output file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// ErrNoEntries is returned when no journal entry matches the filters.
var ErrNoEntries = errors.New("no journal entries match the export criteria")

// Entry is one parsed journal row.
type Entry struct {
	Timestamp time.Time        `json:"timestamp"`
	Event     events.EventType `json:"event"`
	Token     string           `json:"token,omitempty"`
	Side      types.Side       `json:"side,omitempty"`
	Account   string           `json:"account,omitempty"`
	AmountIn  uint64           `json:"amount_in,omitempty"`
	AmountOut uint64           `json:"amount_out,omitempty"`
	Fee       uint64           `json:"fee,omitempty"`
	Reserve   uint64           `json:"reserve,omitempty"`
	Sold      uint64           `json:"sold,omitempty"`
	Detail    string           `json:"detail,omitempty"`

	raw []string
}

// Options configures the export.
type Options struct {
	Format    Format
	StartTime time.Time
	EndTime   time.Time
	// Token filters by token index.
	Token string
	// Side keeps only trades on one side; other events are dropped.
	Side      types.Side
	OutputDir string
}

// ReadJournal loads every row of the journal file at path.
func ReadJournal(path string) ([]Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	defer file.Close()
	return Parse(file)
}

// Parse reads journal rows from r. The first row must be the journal header.
func Parse(r io.Reader) ([]Entry, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(journal.Header)

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if !slices.Equal(header, journal.Header) {
		return nil, fmt.Errorf("unexpected journal header %v", header)
	}

	var entries []Entry
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			return entries, nil
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		entry, err := parseRecord(record)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		entries = append(entries, entry)
	}
}

func parseRecord(record []string) (Entry, error) {
	ts, err := time.Parse(time.RFC3339Nano, record[0])
	if err != nil {
		return Entry{}, fmt.Errorf("invalid timestamp: %w", err)
	}
	e := Entry{
		Timestamp: ts,
		Event:     events.EventType(record[1]),
		Token:     record[2],
		Side:      types.Side(record[3]),
		Account:   record[4],
		Detail:    record[10],
		raw:       record,
	}
	for i, dst := range []*uint64{&e.AmountIn, &e.AmountOut, &e.Fee, &e.Reserve, &e.Sold} {
		field := record[5+i]
		if field == "" {
			continue
		}
		if *dst, err = strconv.ParseUint(field, 10, 64); err != nil {
			return Entry{}, fmt.Errorf("invalid %s: %w", journal.Header[5+i], err)
		}
	}
	return e, nil
}

// Record converts the entry back to its journal row.
func (e Entry) Record() []string {
	if e.raw != nil {
		return slices.Clone(e.raw)
	}
	u := func(v uint64) string {
		if v == 0 {
			return ""
		}
		return strconv.FormatUint(v, 10)
	}
	return []string{
		e.Timestamp.UTC().Format(time.RFC3339Nano),
		string(e.Event), e.Token, string(e.Side), e.Account,
		u(e.AmountIn), u(e.AmountOut), u(e.Fee), u(e.Reserve), u(e.Sold), e.Detail,
	}
}

// Exporter writes filtered journal extracts with a summary.
type Exporter struct {
	logger *zap.Logger
	now    func() time.Time
}

// NewExporter creates an exporter.
func NewExporter(logger *zap.Logger) *Exporter {
	return &Exporter{logger: logger.Named("report"), now: time.Now}
}

// Export writes the entries matching options to a new file in
// options.OutputDir and returns its path.
func (ex *Exporter) Export(entries []Entry, options Options) (string, error) {
	filtered := Filter(entries, options)
	if len(filtered) == 0 {
		return "", ErrNoEntries
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Timestamp.Before(filtered[j].Timestamp)
	})

	if err := os.MkdirAll(options.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	outputPath := filepath.Join(options.OutputDir, ex.filename(options))

	var err error
	switch options.Format {
	case FormatCSV:
		err = exportCSV(filtered, outputPath)
	case FormatJSON:
		err = ex.exportJSON(filtered, outputPath)
	default:
		err = fmt.Errorf("unsupported format: %s", options.Format)
	}
	if err != nil {
		return "", err
	}

	ex.logger.Info("Journal exported",
		zap.String("file", outputPath),
		zap.Int("count", len(filtered)),
		zap.String("format", string(options.Format)))
	return outputPath, nil
}

// Filter returns the entries that pass every filter in options.
func Filter(entries []Entry, options Options) []Entry {
	var filtered []Entry
	for _, e := range entries {
		if !options.StartTime.IsZero() && e.Timestamp.Before(options.StartTime) {
			continue
		}
		if !options.EndTime.IsZero() && e.Timestamp.After(options.EndTime) {
			continue
		}
		if options.Token != "" && e.Token != options.Token {
			continue
		}
		if options.Side != "" && e.Side != options.Side {
			continue
		}
		filtered = append(filtered, e)
	}
	return filtered
}

func (ex *Exporter) filename(options Options) string {
	prefix := "journal_all"
	if options.Side != "" {
		prefix = "journal_" + string(options.Side)
	}
	if options.Token != "" {
		prefix += "_token" + options.Token
	}
	return fmt.Sprintf("%s_%s.%s", prefix, ex.now().Format("20060102_150405"), options.Format)
}

func exportCSV(entries []Entry, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(journal.Header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, e := range entries {
		if err := writer.Write(e.Record()); err != nil {
			return fmt.Errorf("failed to write entry: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

func (ex *Exporter) exportJSON(entries []Entry, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create JSON file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")

	data := struct {
		ExportTime time.Time `json:"export_time"`
		EntryCount int       `json:"entry_count"`
		Summary    Summary   `json:"summary"`
		Entries    []Entry   `json:"entries"`
	}{
		ExportTime: ex.now(),
		EntryCount: len(entries),
		Summary:    Summarize(entries),
		Entries:    entries,
	}
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}
