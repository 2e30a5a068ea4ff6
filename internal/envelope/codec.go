package envelope

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"unicode/utf8"
)

// Record field names. Order here is the encoded order.
const (
	FieldType      = "type"
	FieldContent   = "content"
	FieldTimestamp = "timestamp"
	FieldAuthor    = "author"
)

type wireRecord struct {
	Type      Variant `json:"type"`
	Content   string  `json:"content"`
	Timestamp uint64  `json:"timestamp"`
	Author    string  `json:"author"`
}

// Encode renders e as a single-line JSON object. It does not validate e.
func Encode(e Envelope) ([]byte, error) {
	if !utf8.ValidString(e.content) {
		return nil, fmt.Errorf("%w: %s is not valid utf-8", ErrUnrepresentable, FieldContent)
	}
	if !utf8.ValidString(e.author) {
		return nil, fmt.Errorf("%w: %s is not valid utf-8", ErrUnrepresentable, FieldAuthor)
	}
	if _, err := e.variant.Tag(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	err := enc.Encode(wireRecord{
		Type:      e.variant,
		Content:   e.content,
		Timestamp: e.createdAt,
		Author:    e.author,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnrepresentable, err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}), nil
}

// Decode parses a record produced by Encode. Field names match exactly;
// unknown fields, including case variants of known ones, are ignored. A known
// field that appears twice is malformed. The result is not validated.
func Decode(data []byte) (Envelope, error) {
	if !utf8.Valid(data) {
		return Envelope{}, &DecodeError{Err: ErrMalformed, Cause: errors.New("record is not valid utf-8")}
	}
	fields, err := recordFields(data)
	if err != nil {
		return Envelope{}, err
	}

	tag, err := stringField(fields, FieldType)
	if err != nil {
		return Envelope{}, err
	}
	content, err := stringField(fields, FieldContent)
	if err != nil {
		return Envelope{}, err
	}
	rawTS, ok := fields[FieldTimestamp]
	if !ok || isNull(rawTS) {
		return Envelope{}, missingField(FieldTimestamp)
	}
	author, err := stringField(fields, FieldAuthor)
	if err != nil {
		return Envelope{}, err
	}

	variant, err := ParseVariant(tag)
	if err != nil {
		return Envelope{}, &DecodeError{Field: FieldType, Err: ErrUnknownVariant, Cause: err}
	}

	ts, err := parseTimestamp(rawTS)
	if err != nil {
		return Envelope{}, &DecodeError{Field: FieldTimestamp, Err: ErrMalformed, Cause: err}
	}

	return Envelope{
		variant:   variant,
		content:   content,
		author:    author,
		createdAt: ts,
	}, nil
}

// recordFields collects the known top-level fields of a JSON object.
func recordFields(data []byte) (map[string]json.RawMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, &DecodeError{Err: ErrMalformed, Cause: err}
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, &DecodeError{Err: ErrMalformed, Cause: fmt.Errorf("expected object, got %v", tok)}
	}

	fields := make(map[string]json.RawMessage, 4)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, &DecodeError{Err: ErrMalformed, Cause: err}
		}
		key, ok := tok.(string)
		if !ok {
			return nil, &DecodeError{Err: ErrMalformed, Cause: fmt.Errorf("unexpected token %v", tok)}
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, &DecodeError{Field: key, Err: ErrMalformed, Cause: err}
		}
		switch key {
		case FieldType, FieldContent, FieldTimestamp, FieldAuthor:
			if _, dup := fields[key]; dup {
				return nil, &DecodeError{Field: key, Err: ErrMalformed, Cause: errors.New("duplicate field")}
			}
			fields[key] = value
		}
	}
	if _, err := dec.Token(); err != nil {
		return nil, &DecodeError{Err: ErrMalformed, Cause: err}
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, &DecodeError{Err: ErrMalformed, Cause: errors.New("trailing data after record")}
	}
	return fields, nil
}

func stringField(fields map[string]json.RawMessage, name string) (string, error) {
	raw, ok := fields[name]
	if !ok || isNull(raw) {
		return "", missingField(name)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", &DecodeError{Field: name, Err: ErrMalformed, Cause: err}
	}
	return s, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func missingField(name string) error {
	return &DecodeError{Field: name, Err: ErrMalformed, Cause: errors.New("missing required field")}
}

// parseTimestamp accepts only a bare non-negative integer literal.
func parseTimestamp(raw json.RawMessage) (uint64, error) {
	text := string(bytes.TrimSpace(raw))
	if text == "" || text[0] == '"' {
		return 0, fmt.Errorf("timestamp must be a number, got %s", text)
	}
	ts, err := strconv.ParseUint(text, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("timestamp must be a non-negative 64-bit integer, got %s", text)
	}
	return ts, nil
}
