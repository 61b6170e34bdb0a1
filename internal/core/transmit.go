package core

// transmit.go splits changed records into bounded chunks and sends them
// in order, stopping at the first chunk that is not accepted.

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const (
	// DefaultChunkSize is the maximum number of records per payload.
	DefaultChunkSize = 100

	// DefaultChunkDelay is the pause between consecutive chunks.
	DefaultChunkDelay = 100 * time.Millisecond
)

// TransmitResult summarizes a completed transmission.
type TransmitResult struct {
	ChunksSent   int
	RecordsSent  int
	Processed    int // Sum of the remote's processed counts
	TotalChunks  int
	TotalRecords int
}

// Transmitter sends record batches through a Sender.
type Transmitter struct {
	sender   Sender
	size     int
	delay    time.Duration
	sourceID string
	now      func() time.Time
	logger   *slog.Logger
}

// TransmitterOption configures a Transmitter.
type TransmitterOption func(*Transmitter)

// WithChunkSize sets the maximum records per chunk. Panics if n < 1.
func WithChunkSize(n int) TransmitterOption {
	if n < 1 {
		panic(fmt.Sprintf("core: chunk size must be positive, got %d", n))
	}
	return func(t *Transmitter) { t.size = n }
}

// WithChunkDelay sets the pause between chunks. Panics if d < 0.
func WithChunkDelay(d time.Duration) TransmitterOption {
	if d < 0 {
		panic(fmt.Sprintf("core: chunk delay must not be negative, got %s", d))
	}
	return func(t *Transmitter) { t.delay = d }
}

// WithSourceIdentifier sets the sourceIdentifier stamped on every payload.
func WithSourceIdentifier(id string) TransmitterOption {
	return func(t *Transmitter) { t.sourceID = id }
}

// WithTransmitClock overrides the clock used for the payload timestamp.
func WithTransmitClock(now func() time.Time) TransmitterOption {
	return func(t *Transmitter) { t.now = now }
}

// WithTransmitLogger sets the logger.
func WithTransmitLogger(l *slog.Logger) TransmitterOption {
	return func(t *Transmitter) { t.logger = l }
}

// NewTransmitter creates a Transmitter. Panics if sender is nil.
func NewTransmitter(sender Sender, opts ...TransmitterOption) *Transmitter {
	if sender == nil {
		panic("core: sender must not be nil")
	}
	t := &Transmitter{
		sender: sender,
		size:   DefaultChunkSize,
		delay:  DefaultChunkDelay,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// SplitChunks partitions records into consecutive slices of at most size.
// The concatenation of the chunks equals the input.
func SplitChunks(records []SyncRecord, size int) [][]SyncRecord {
	if size < 1 {
		size = DefaultChunkSize
	}
	chunks := make([][]SyncRecord, 0, (len(records)+size-1)/size)
	for start := 0; start < len(records); start += size {
		end := min(start+size, len(records))
		chunks = append(chunks, records[start:end])
	}
	return chunks
}

// Transmit sends records for table in order. On the first failure it returns
// a *ChunkError naming the 1-based chunk that failed; later chunks are not sent.
// The context is checked before every chunk and during the inter-chunk delay.
func (t *Transmitter) Transmit(ctx context.Context, table string, records []SyncRecord, mode SyncMode) (TransmitResult, error) {
	chunks := SplitChunks(records, t.size)
	res := TransmitResult{TotalChunks: len(chunks), TotalRecords: len(records)}
	syncTime := t.now().UTC()

	for i, chunk := range chunks {
		idx := i + 1
		fail := func(err error) (TransmitResult, error) {
			return res, &ChunkError{Table: table, Chunk: idx, TotalChunks: len(chunks), Err: err}
		}

		if i > 0 && t.delay > 0 {
			timer := time.NewTimer(t.delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return fail(ctx.Err())
			case <-timer.C:
			}
		}
		if err := ctx.Err(); err != nil {
			return fail(err)
		}

		payload := &SyncPayload{
			TableName:        table,
			Records:          chunk,
			SyncMode:         mode,
			ChunkNumber:      idx,
			TotalChunks:      len(chunks),
			TotalRecords:     len(records),
			Timestamp:        syncTime,
			SourceIdentifier: t.sourceID,
		}

		start := time.Now()
		ack, err := t.sender.Send(ctx, payload)
		if err != nil {
			return fail(err)
		}
		if ack == nil || !ack.Success {
			msg := ""
			if ack != nil {
				msg = ack.Message
			}
			return fail(fmt.Errorf("%w: %s", ErrChunkRejected, msg))
		}

		res.ChunksSent++
		res.RecordsSent += len(chunk)
		res.Processed += ack.Processed
		t.logger.Debug("chunk sent",
			"table", table,
			"chunk", idx,
			"total_chunks", len(chunks),
			"records", len(chunk),
			"processed", ack.Processed,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}

	return res, nil
}
