package envelope

import (
	"time"
	"unicode/utf8"
)

// MaxMicroblogLength is the code point cap for Microblog content.
const MaxMicroblogLength = 280

// Clock supplies the wall time captured at construction.
type Clock func() time.Time

// Envelope is one entry destined for an append-only feed.
// Values are immutable after construction.
type Envelope struct {
	variant   Variant
	content   string
	author    string
	createdAt uint64
}

// New builds an envelope stamped with the current wall time. It never fails;
// call Validate before persisting.
func New(variant Variant, content, author string) Envelope {
	return NewWithClock(time.Now, variant, content, author)
}

// NewWithClock is New with an explicit time source. A nil clock falls back to
// time.Now.
func NewWithClock(clock Clock, variant Variant, content, author string) Envelope {
	if clock == nil {
		clock = time.Now
	}
	return Envelope{
		variant:   variant,
		content:   content,
		author:    author,
		createdAt: unixMillis(clock()),
	}
}

func unixMillis(t time.Time) uint64 {
	ms := t.UnixMilli()
	if ms < 0 {
		return 0
	}
	return uint64(ms)
}

func (e Envelope) Variant() Variant  { return e.variant }
func (e Envelope) Content() string   { return e.content }
func (e Envelope) Author() string    { return e.author }
func (e Envelope) CreatedAt() uint64 { return e.createdAt }

// Time returns CreatedAt as a time.Time in UTC.
func (e Envelope) Time() time.Time {
	return time.UnixMilli(int64(e.createdAt)).UTC()
}

// Validate checks content rules, then that the variant is one of the defined
// kinds. It has no side effects and may be called any
// number of times.
func (e Envelope) Validate() error {
	if e.content == "" {
		return &ValidationError{Variant: e.variant, Err: ErrEmptyContent}
	}
	switch e.variant {
	case Microblog:
		if n := utf8.RuneCountInString(e.content); n > MaxMicroblogLength {
			return &ValidationError{Variant: e.variant, Length: n, Err: ErrMicroblogTooLong}
		}
	case Chat, Status:
	default:
		return &ValidationError{Variant: e.variant, Err: ErrInvalidVariant}
	}
	return nil
}
