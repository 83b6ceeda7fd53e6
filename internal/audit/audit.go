// Package audit records who accessed which patient document and how the
// request was decided. Recording is best-effort: a Sink has no error return,
// so an audit outage can never turn into an access outage.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Actions written to the access log.
const (
	ActionView           = "VIEW"
	ActionList           = "LIST"
	ActionDownload       = "DOWNLOAD"
	ActionUpload         = "UPLOAD"
	ActionUploadRejected = "UPLOAD_REJECTED"
)

// AccessLogEntry is one append-only access record.
type AccessLogEntry struct {
	ID            string
	ActorID       string
	ActorType     string
	DocumentType  string
	DocumentID    string
	PatientID     string
	Action        string
	AccessReason  string
	Success       bool
	FailureReason string
	FileHash      string
	IPAddress     string
	UserAgent     string
	Timestamp     time.Time
}

// PHIAccessEntry is the patient-centric variant used by call sites that
// describe access in terms of a resource and a purpose.
type PHIAccessEntry struct {
	ID            string
	UserID        string
	UserRole      string
	PatientID     string
	ResourceType  string
	ResourceID    string
	Action        string
	Purpose       string
	Success       bool
	FailureReason string
	IPAddress     string
	UserAgent     string
	Timestamp     time.Time
}

// Sink stores audit records. Write methods never report failure to the
// caller; implementations retry or log internally.
type Sink interface {
	WriteAccess(ctx context.Context, entry AccessLogEntry)
	WritePHIAccess(ctx context.Context, entry PHIAccessEntry)
}

// Auditor stamps entries and hands them to a Sink.
type Auditor struct {
	sink Sink
	now  func() time.Time
}

// Option configures an Auditor.
type Option func(*Auditor)

// WithClock replaces the clock used to stamp entries.
func WithClock(now func() time.Time) Option {
	return func(a *Auditor) {
		a.now = now
	}
}

// New returns an Auditor writing to sink.
func New(sink Sink, opts ...Option) *Auditor {
	a := &Auditor{sink: sink, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// LogAccess appends an access record.
func (a *Auditor) LogAccess(ctx context.Context, entry AccessLogEntry) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = a.now().UTC()
	}
	a.sink.WriteAccess(ctx, entry)
}

// LogPhiAccess appends a PHI access record.
func (a *Auditor) LogPhiAccess(ctx context.Context, entry PHIAccessEntry) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = a.now().UTC()
	}
	a.sink.WritePHIAccess(ctx, entry)
}

// Multi fans every entry out to each sink in order.
func Multi(sinks ...Sink) Sink {
	return multiSink(sinks)
}

type multiSink []Sink

func (m multiSink) WriteAccess(ctx context.Context, entry AccessLogEntry) {
	for _, s := range m {
		s.WriteAccess(ctx, entry)
	}
}

func (m multiSink) WritePHIAccess(ctx context.Context, entry PHIAccessEntry) {
	for _, s := range m {
		s.WritePHIAccess(ctx, entry)
	}
}

// Discard drops every entry.
var Discard Sink = discardSink{}

type discardSink struct{}

func (discardSink) WriteAccess(context.Context, AccessLogEntry)    {}
func (discardSink) WritePHIAccess(context.Context, PHIAccessEntry) {}
