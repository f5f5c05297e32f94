// internal/journal/journal.go
package journal

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/rovshanmuradov/launchpad/internal/events"
	"go.uber.org/zap"
)

// Header is the column layout of the journal file.
var Header = []string{"timestamp", "event", "token", "side", "account", "amount_in", "amount_out", "fee", "reserve", "sold", "detail"}

// Journal appends protocol events to a CSV file. Writes are buffered and
// flushed on a timer and on Close.
type Journal struct {
	mu       sync.Mutex
	writer   *csv.Writer
	file     *os.File
	ticker   *time.Ticker
	done     chan struct{}
	logger   *zap.Logger
	filePath string
	sub      events.Subscription

	writtenRecords uint64
	flushCount     uint64
}

// Open creates or appends to the journal at filePath.
func Open(filePath string, flushInterval time.Duration, logger *zap.Logger) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	if flushInterval <= 0 {
		flushInterval = time.Second
	}
	j := &Journal{
		writer:   csv.NewWriter(file),
		file:     file,
		ticker:   time.NewTicker(flushInterval),
		done:     make(chan struct{}),
		logger:   logger.Named("journal"),
		filePath: filePath,
	}

	if stat.Size() == 0 {
		if err := j.writer.Write(Header); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
		j.writer.Flush()
	}

	go j.periodicFlush()

	return j, nil
}

// Attach subscribes the journal to every event type it records.
func (j *Journal) Attach(bus events.Subscriber) {
	j.sub = events.SubscribeMany(bus, events.HandlerFunc(j.handle), events.AllTypes...)
}

func (j *Journal) handle(_ context.Context, event events.Event) error {
	record := Record(event)
	if record == nil {
		return nil
	}
	return j.WriteRecord(record)
}

// Record converts an event to a journal row; nil for unknown events.
func Record(event events.Event) []string {
	u := func(v uint64) string { return strconv.FormatUint(v, 10) }
	row := func(token, side, account, in, out, fee, reserve, sold, detail string) []string {
		return []string{
			event.Timestamp().UTC().Format(time.RFC3339Nano),
			string(event.Type()),
			token, side, account, in, out, fee, reserve, sold, detail,
		}
	}

	switch e := event.(type) {
	case *events.TokenCreatedEvent:
		return row(u(e.Token.Index), "", e.Token.Creator.String(), u(e.FeePaid), u(e.Token.InitialSupply), u(e.FeePaid), "", "",
			e.Token.Symbol+" "+e.Token.Address.String())
	case *events.TradeExecutedEvent:
		t := e.Trade
		detail := ""
		if t.Refund > 0 {
			detail = "refund=" + u(t.Refund)
		}
		return row(u(t.TokenIndex), string(t.Side), t.Trader.String(), u(t.AmountIn), u(t.AmountOut), u(t.Fee), u(t.Reserve), u(t.Sold), detail)
	case *events.TokenMigratedEvent:
		return row(u(e.TokenIndex), "", e.PoolAddress.String(), u(e.Reserve), u(e.SeedTokens), "", "0", "",
			"forced="+strconv.FormatBool(e.Forced))
	case *events.MigrationFailedEvent:
		return row(u(e.TokenIndex), "", "", "", "", "", "", "", e.Error.Error())
	case *events.TokenStatusEvent:
		return row(u(e.TokenIndex), "", e.Caller.String(), "", "", "", "", "", "")
	case *events.ConfigChangedEvent:
		return row("", "", e.Caller.String(), "", "", "", "", "", e.Field+"="+e.Value)
	default:
		return nil
	}
}

// WriteRecord appends one row.
func (j *Journal) WriteRecord(record []string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.writer.Write(record); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}

	j.writtenRecords++
	return nil
}

// Flush forces a write of any buffered data
func (j *Journal) Flush() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.writer.Flush()
	if err := j.writer.Error(); err != nil {
		return fmt.Errorf("CSV writer error: %w", err)
	}

	if err := j.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync file: %w", err)
	}

	j.flushCount++
	return nil
}

func (j *Journal) periodicFlush() {
	for {
		select {
		case <-j.ticker.C:
			if err := j.Flush(); err != nil {
				j.logger.Error("Periodic journal flush failed",
					zap.String("file", j.filePath),
					zap.Error(err))
			}
		case <-j.done:
			return
		}
	}
}

// Close unsubscribes from the bus and writes out everything buffered.
func (j *Journal) Close() error {
	if j.sub != nil {
		j.sub.Unsubscribe()
	}
	close(j.done)
	j.ticker.Stop()

	j.mu.Lock()
	defer j.mu.Unlock()

	j.writer.Flush()
	if err := j.writer.Error(); err != nil {
		return fmt.Errorf("CSV writer error on close: %w", err)
	}

	if err := j.file.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}

	j.logger.Info("Journal closed",
		zap.String("file", j.filePath),
		zap.Uint64("writtenRecords", j.writtenRecords),
		zap.Uint64("flushCount", j.flushCount))

	return nil
}

// Stats returns how many records were written and how many flushes ran.
func (j *Journal) Stats() (records, flushes uint64) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.writtenRecords, j.flushCount
}
