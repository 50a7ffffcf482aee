package server

import (
	"context"
	"errors"
)

// Notifier sends server-initiated notifications to the peer that issued
// the current call. Transports install one in the handler context.
type Notifier interface {
	Notify(ctx context.Context, method string, params any) error
}

// ErrNoNotifier is returned by Notify when the context carries no Notifier.
var ErrNoNotifier = errors.New("server: no notifier in context")

type notifierKey struct{}

// ContextWithNotifier returns a context carrying n.
func ContextWithNotifier(ctx context.Context, n Notifier) context.Context {
	return context.WithValue(ctx, notifierKey{}, n)
}

// NotifierFromContext returns the Notifier in ctx, or nil.
func NotifierFromContext(ctx context.Context) Notifier {
	n, _ := ctx.Value(notifierKey{}).(Notifier)
	return n
}

// Notify sends a notification through the Notifier in ctx.
func Notify(ctx context.Context, method string, params any) error {
	n := NotifierFromContext(ctx)
	if n == nil {
		return ErrNoNotifier
	}
	return n.Notify(ctx, method, params)
}
