package account

import "context"

type sessionErrKey struct{}

func withSessionError(ctx context.Context, err error) context.Context {
	return context.WithValue(ctx, sessionErrKey{}, err)
}

func sessionErrorFrom(ctx context.Context) error {
	err, _ := ctx.Value(sessionErrKey{}).(error)
	return err
}
