package shipper

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/obsidianstack/slareport/pkg/types"
)

// DefaultAttempts is the number of upload attempts per object.
const DefaultAttempts = 3

// Batch is the content of one output file. Name is the file name without
// prefix or extension, typically the report date.
type Batch struct {
	Name string
	Rows []types.Row
}

// Object is an encoded batch ready for upload.
type Object struct {
	Key         string
	Body        []byte
	ContentType string
}

// Uploader stores one object.
type Uploader interface {
	Upload(ctx context.Context, obj Object) error
}

// Options configures a Shipper.
type Options struct {
	Encoding Encoding
	// Header writes a CSV header row.
	Header bool
	// Prefix is prepended to every key, e.g. "slo/".
	Prefix string
	// Attempts per object; DefaultAttempts when zero.
	Attempts int
	// RetryWait is the first backoff delay; one second when zero.
	RetryWait time.Duration
}

// Stats summarises one Ship call.
type Stats struct {
	Objects int
	Rows    int
	Bytes   int
}

// Shipper encodes batches and hands them to an Uploader.
type Shipper struct {
	up   Uploader
	opts Options

	sleep func(ctx context.Context, d time.Duration) error // injectable for tests
}

// New returns a Shipper writing through up.
func New(up Uploader, opts Options) *Shipper {
	if opts.Attempts <= 0 {
		opts.Attempts = DefaultAttempts
	}
	return &Shipper{up: up, opts: opts, sleep: sleepCtx}
}

// Key returns the object key for a batch name.
func (s *Shipper) Key(name string) string {
	return s.opts.Prefix + path.Clean(name) + s.opts.Encoding.Ext()
}

// Ship encodes every batch and then uploads them in order. Nothing is
// uploaded if any batch fails to encode.
func (s *Shipper) Ship(ctx context.Context, batches []Batch) (Stats, error) {
	objs := make([]Object, 0, len(batches))
	var st Stats
	for _, b := range batches {
		body, err := Encode(s.opts.Encoding, b.Rows, s.opts.Header)
		if err != nil {
			return Stats{}, fmt.Errorf("shipper: batch %s: %w", b.Name, err)
		}
		objs = append(objs, Object{Key: s.Key(b.Name), Body: body, ContentType: s.opts.Encoding.ContentType()})
		st.Rows += len(b.Rows)
	}

	for _, obj := range objs {
		if err := s.upload(ctx, obj); err != nil {
			return st, err
		}
		st.Objects++
		st.Bytes += len(obj.Body)
		slog.Debug("shipper: object delivered", "key", obj.Key, "bytes", len(obj.Body))
	}
	return st, nil
}

func (s *Shipper) upload(ctx context.Context, obj Object) error {
	bo := newBackoff(s.opts.RetryWait)
	var err error
	for attempt := 1; ; attempt++ {
		if err = s.up.Upload(ctx, obj); err == nil {
			return nil
		}
		if attempt >= s.opts.Attempts || ctx.Err() != nil {
			break
		}
		wait := bo.next()
		slog.Warn("shipper: upload failed, will retry",
			"key", obj.Key, "attempt", attempt, "err", err, "retry_in", wait)
		if serr := s.sleep(ctx, wait); serr != nil {
			break
		}
	}
	return fmt.Errorf("shipper: upload %s: %w", obj.Key, err)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
