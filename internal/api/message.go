package api

import (
	"fmt"
	"time"
	"unicode/utf8"
)

// MessageBuilder assembles a Message for ingestion.
//
// Every method returns a new builder; a partially built message can be
// reused as a template. Positions are checked by Build.
type MessageBuilder struct {
	text      string
	timestamp *int64
	fields    []Field
}

// NewMessage starts a message with the given text.
func NewMessage(text string) MessageBuilder {
	return MessageBuilder{text: text}
}

// Field attaches a named value.
func (b MessageBuilder) Field(name, content string) MessageBuilder {
	return b.with(Field{Name: name, Content: content})
}

// FieldAt attaches a field whose value is length characters of the text
// starting at start.
func (b MessageBuilder) FieldAt(name string, start, length int) MessageBuilder {
	return b.with(Field{Name: name, StartPosition: start, Length: length})
}

// Timestamp sets the event time in unix milliseconds.
func (b MessageBuilder) Timestamp(ms int64) MessageBuilder {
	out := b.clone()
	out.timestamp = &ms
	return out
}

// TimestampAt sets the event time.
func (b MessageBuilder) TimestampAt(t time.Time) MessageBuilder {
	return b.Timestamp(t.UnixMilli())
}

// CurrentTimestamp sets the event time to now.
func (b MessageBuilder) CurrentTimestamp() MessageBuilder {
	return b.TimestampAt(time.Now())
}

// Build validates positional fields against the text and returns the message.
//
// Returns *InvalidMessageError if a field has a negative start or length,
// or extends past the end of the text.
func (b MessageBuilder) Build() (Message, error) {
	textLen := utf8.RuneCountInString(b.text)
	for _, f := range b.fields {
		if f.Name == "" {
			return Message{}, &InvalidMessageError{Reason: "field name is empty"}
		}
		if f.Content != "" {
			continue
		}
		switch {
		case f.StartPosition < 0:
			return Message{}, &InvalidMessageError{Field: f.Name, Reason: fmt.Sprintf("invalid start position %d", f.StartPosition)}
		case f.Length < 0:
			return Message{}, &InvalidMessageError{Field: f.Name, Reason: fmt.Sprintf("invalid length %d", f.Length)}
		case f.StartPosition+f.Length > textLen:
			return Message{}, &InvalidMessageError{
				Field:  f.Name,
				Reason: fmt.Sprintf("range [%d,%d) exceeds text length %d", f.StartPosition, f.StartPosition+f.Length, textLen),
			}
		}
	}

	out := b.clone()
	return Message{Text: out.text, Timestamp: out.timestamp, Fields: out.fields}, nil
}

func (b MessageBuilder) with(f Field) MessageBuilder {
	out := b.clone()
	out.fields = append(out.fields, f)
	return out
}

func (b MessageBuilder) clone() MessageBuilder {
	out := MessageBuilder{text: b.text}
	if b.timestamp != nil {
		ts := *b.timestamp
		out.timestamp = &ts
	}
	if b.fields != nil {
		out.fields = append([]Field(nil), b.fields...)
	}
	return out
}
