package domain

import (
	"context"
	"encoding/json"
	"time"
)

type profileKey struct{}

// Span times a single pipeline stage
type Span struct {
	Name    string    `json:"name"`
	startTs time.Time `json:"-"`

	Rows    *int   `json:"rows,omitempty"`
	Elapsed *int64 `json:"elapsedMs"`
}

func (s *Span) End() {
	if s.Elapsed == nil {
		t := time.Since(s.startTs).Milliseconds()
		s.Elapsed = &t
	}
}

// SetRows records how many rows the stage produced
func (s *Span) SetRows(n int) {
	s.Rows = &n
}

// Profile is an ordered list of stage spans for one run
type Profile struct {
	Spans   []*Span `json:"spans"`
	startTs time.Time
	TotalMs *int64 `json:"totalMs"`
}

func NewProfile() (newProfile *Profile, endNewProfile func()) {
	newProfile = &Profile{
		Spans:   []*Span{},
		startTs: time.Now(),
	}
	return newProfile, newProfile.End
}

func (p *Profile) End() {
	if len(p.Spans) > 0 {
		p.Spans[len(p.Spans)-1].End()
	}
	if p.TotalMs == nil {
		t := time.Since(p.startTs).Milliseconds()
		p.TotalMs = &t
	}
}

// StartNewSpan ends the previous span and begins a new one. not thread safe
func (p *Profile) StartNewSpan(name string) (newSpan *Span, endSpan func()) {
	newSpan = &Span{
		Name:    name,
		startTs: time.Now(),
	}
	if len(p.Spans) > 0 {
		p.Spans[len(p.Spans)-1].End()
	}
	p.Spans = append(p.Spans, newSpan)
	return newSpan, newSpan.End
}

func (p *Profile) ToJsonBytes() ([]byte, error) {
	return json.Marshal(p)
}

func WithProfile(ctx context.Context, p *Profile) context.Context {
	return context.WithValue(ctx, profileKey{}, p)
}

// GetProfile returns the run profile on ctx, or a detached one so callers
// never need a nil check
func GetProfile(ctx context.Context) *Profile {
	if p, ok := ctx.Value(profileKey{}).(*Profile); ok {
		return p
	}
	p, _ := NewProfile()
	return p
}
