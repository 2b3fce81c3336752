package svc

import (
	"context"

	"golang.org/x/time/rate"
)

// Limit wraps s so that it reports itself unready once l has no tokens left.
// Each successful Ready consumes one token.
func Limit(s Service, l *rate.Limiter) Service { return limited{Service: s, l: l} }

type limited struct {
	Service
	l *rate.Limiter
}

func (s limited) Ready() error {
	if err := s.Service.Ready(); err != nil {
		return err
	}

	if !s.l.Allow() {
		return ErrNotReady
	}

	return nil
}

func (s limited) Call(c context.Context, r Request) (Response, error) {
	return s.Service.Call(c, r)
}

// Unready is a Service that never becomes ready.
var Unready Service = unready{}

type unready struct{}

func (unready) Ready() error { return ErrNotReady }

func (unready) Call(context.Context, Request) (Response, error) { return nil, ErrNotReady }
