package auth

import "context"

type accountCtxKey struct{}

// ContextWithAccount returns a copy of ctx carrying the authenticated account.
func ContextWithAccount(ctx context.Context, acc *Account) context.Context {
	return context.WithValue(ctx, accountCtxKey{}, acc)
}

// AccountFromContext returns the account stored by ContextWithAccount.
func AccountFromContext(ctx context.Context) (*Account, bool) {
	acc, ok := ctx.Value(accountCtxKey{}).(*Account)
	return acc, ok && acc != nil
}
