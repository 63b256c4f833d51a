package client

import (
	"context"
	"sync"
)

// Token identifies one search. Only the most recent token is current.
type Token uint64

// Session hands out search tokens and cancels the search a new one replaces.
type Session struct {
	mu     sync.Mutex
	gen    Token
	cancel context.CancelFunc
}

// Begin starts a search, cancelling whatever search was running.
func (s *Session) Begin(parent context.Context) (context.Context, Token) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	ctx, cancel := context.WithCancel(parent)
	s.gen++
	s.cancel = cancel
	return ctx, s.gen
}

// Current reports whether tok belongs to the latest search.
func (s *Session) Current(tok Token) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return tok == s.gen
}

// End releases the context of tok if it is still the latest search.
func (s *Session) End(tok Token) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tok == s.gen && s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}
