package identity

import (
	"context"
	"errors"
	"strings"
)

type ctxKey string

const (
	actorKey   ctxKey = "identity_actor"
	consentKey ctxKey = "identity_consents"
)

// ContextWithActor stores the authenticated actor address in the context.
func ContextWithActor(ctx context.Context, address string) context.Context {
	return context.WithValue(ctx, actorKey, strings.TrimSpace(address))
}

// ActorFromContext extracts the authenticated actor address from the context.
func ActorFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(actorKey).(string)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}

// ContextWithConsent records an additionally proven identity, e.g. the
// receiving party of an ownership transfer who presented their own token.
func ContextWithConsent(ctx context.Context, address string) context.Context {
	address = strings.TrimSpace(address)
	if address == "" {
		return ctx
	}
	consents := consentsFromContext(ctx)
	next := make(map[string]struct{}, len(consents)+1)
	for k := range consents {
		next[k] = struct{}{}
	}
	next[address] = struct{}{}
	return context.WithValue(ctx, consentKey, next)
}

func consentsFromContext(ctx context.Context) map[string]struct{} {
	v, ok := ctx.Value(consentKey).(map[string]struct{})
	if !ok {
		return nil
	}
	return v
}

// ErrUnproven is returned by the Verifier when no proof covers the identity.
var ErrUnproven = errors.New("identity: no proof for claimed identity")

// Verifier implements the tracking core's identity-proof predicate from
// request context: an identity is proven when it is the authenticated actor
// or has been attached as a consenting party.
type Verifier struct{}

// Verify reports whether the context carries proof for the given identity.
func (Verifier) Verify(ctx context.Context, id string) error {
	if actor, ok := ActorFromContext(ctx); ok && actor == id {
		return nil
	}
	if _, ok := consentsFromContext(ctx)[id]; ok {
		return nil
	}
	return ErrUnproven
}
