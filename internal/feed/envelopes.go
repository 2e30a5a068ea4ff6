package feed

import (
	"context"
	"fmt"
	"sort"

	"github.com/danmuck/hyperchat/internal/envelope"
	"github.com/danmuck/hyperchat/internal/logging"
	"github.com/rs/zerolog"
)

// DefaultReadLimit matches the page size used when none is given.
const DefaultReadLimit = 100

// Entry is a decoded envelope and where it was read from.
type Entry struct {
	Seq      uint64
	FeedID   string
	Envelope envelope.Envelope
}

type ReadOptions struct {
	Start uint64
	Limit int
}

func (o ReadOptions) limit() uint64 {
	if o.Limit <= 0 {
		return DefaultReadLimit
	}
	return uint64(o.Limit)
}

// Writer appends envelopes to a Log after validating them.
type Writer struct {
	log    Log
	logger zerolog.Logger
}

func NewWriter(l Log) *Writer {
	return &Writer{
		log:    l,
		logger: logging.New("feed.writer").With().Str("feed", l.ID()).Logger(),
	}
}

// Append validates, encodes and stores env. Invalid envelopes are rejected
// with the envelope package's validation error.
func (w *Writer) Append(ctx context.Context, env envelope.Envelope) (uint64, error) {
	if err := env.Validate(); err != nil {
		return 0, fmt.Errorf("feed: rejected envelope: %w", err)
	}
	block, err := envelope.Encode(env)
	if err != nil {
		return 0, fmt.Errorf("feed: encode envelope: %w", err)
	}
	seq, err := w.log.Append(ctx, block)
	if err != nil {
		return 0, err
	}
	w.logger.Debug().
		Uint64("seq", seq).
		Stringer("variant", env.Variant()).
		Str("author", env.Author()).
		Msg("appended envelope")
	return seq, nil
}

// ReadEnvelopes decodes blocks [Start, Start+Limit). Blocks that fail to
// decode are logged and skipped.
func ReadEnvelopes(ctx context.Context, l Log, opts ReadOptions) ([]Entry, error) {
	logger := logging.New("feed.reader").With().Str("feed", l.ID()).Logger()

	length, err := l.Len(ctx)
	if err != nil {
		return nil, err
	}
	if opts.Start >= length {
		return nil, nil
	}
	end := length
	if room := length - opts.Start; room > opts.limit() {
		end = opts.Start + opts.limit()
	}

	entries := make([]Entry, 0, end-opts.Start)
	for seq := opts.Start; seq < end; seq++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		block, err := l.Get(ctx, seq)
		if err != nil {
			return nil, fmt.Errorf("feed: read %d: %w", seq, err)
		}
		env, err := envelope.Decode(block)
		if err != nil {
			logger.Warn().Err(err).Uint64("seq", seq).Msg("skipping undecodable block")
			continue
		}
		entries = append(entries, Entry{Seq: seq, FeedID: l.ID(), Envelope: env})
	}
	return entries, nil
}

// Timeline reads every log with opts and orders the result most recent
// first. Entries with equal timestamps keep log order, then sequence order.
func Timeline(ctx context.Context, opts ReadOptions, logs ...Log) ([]Entry, error) {
	var all []Entry
	for _, l := range logs {
		entries, err := ReadEnvelopes(ctx, l, opts)
		if err != nil {
			return nil, err
		}
		all = append(all, entries...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Envelope.CreatedAt() > all[j].Envelope.CreatedAt()
	})
	return all, nil
}
