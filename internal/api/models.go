package api

// AuthResponse is the body returned by POST /api/v1/sessions.
type AuthResponse struct {
	UserID    string `json:"userId"`
	SessionID string `json:"sessionId"`
	TTL       int    `json:"ttl"` // seconds
}

// EventsResponse is the body returned by an event query.
type EventsResponse struct {
	Complete bool      `json:"complete"`
	Duration int       `json:"duration"` // milliseconds
	Events   []Message `json:"events"`
}

// AggregateResponse is the body returned by an aggregate query.
type AggregateResponse struct {
	Complete bool  `json:"complete"`
	Duration int   `json:"duration"` // milliseconds
	Bins     []Bin `json:"bins"`
}

// Bin is one time bucket of an aggregate result.
type Bin struct {
	MinTimestamp int64   `json:"minTimestamp"`
	MaxTimestamp int64   `json:"maxTimestamp"`
	Value        float64 `json:"value"`
}

// IngestionResponse is the body returned by the ingestion API.
type IngestionResponse struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	Ingested int    `json:"ingested"`
}

// Message is a log event, both as ingested and as returned by event queries.
type Message struct {
	Text      string  `json:"text,omitempty" yaml:"text"`
	Timestamp *int64  `json:"timestamp,omitempty" yaml:"timestamp,omitempty"` // unix milliseconds
	Fields    []Field `json:"fields,omitempty" yaml:"fields,omitempty"`
}

// Field is a named value attached to a Message. It either carries Content
// directly or points into the message text with StartPosition and Length.
type Field struct {
	Name          string `json:"name,omitempty" yaml:"name"`
	Content       string `json:"content,omitempty" yaml:"content,omitempty"`
	StartPosition int    `json:"startPosition,omitempty" yaml:"start_position,omitempty"`
	Length        int    `json:"length,omitempty" yaml:"length,omitempty"`
}

// Positional reports whether f points into the message text.
func (f Field) Positional() bool {
	return f.Content == "" && (f.StartPosition != 0 || f.Length != 0)
}

// IngestionRequest is the body of POST /api/v1/messages/ingest/<agent>.
type IngestionRequest struct {
	Messages []Message `json:"messages"`
}

// NewIngestionRequest returns a request carrying msgs in order.
func NewIngestionRequest(msgs ...Message) IngestionRequest {
	return IngestionRequest{Messages: append([]Message{}, msgs...)}
}

// Add returns a copy of r with msgs appended.
func (r IngestionRequest) Add(msgs ...Message) IngestionRequest {
	out := make([]Message, 0, len(r.Messages)+len(msgs))
	out = append(out, r.Messages...)
	out = append(out, msgs...)
	return IngestionRequest{Messages: out}
}

// Count returns the number of messages.
func (r IngestionRequest) Count() int {
	return len(r.Messages)
}
