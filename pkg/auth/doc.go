// Package auth manages the credential and token lifecycle of user accounts.
//
// It covers registration with email activation, password login, password
// reset, password and email changes, third-party identity linking, and the
// signed session tokens handed to clients. The package performs no HTTP or
// database I/O of its own: persistence goes through Store, notifications
// through Mailer, OAuth state through StateStore.
//
// Concurrency safety comes from the store. Every mutation is a read, a pure
// change to the account value and a conditional write (Store.Update) that only
// succeeds when the stored version is unchanged; conflicting writers re-read
// and retry. Single-use tokens therefore have at most one successful consumer.
//
// Typical wiring:
//
//	signer, _ := jwt.NewFromConfig(jwtCfg)
//	opts := cfg.Options(env.IsProduction())
//	sessions := auth.NewSessionIssuer(store, signer, opts...)
//	svc := auth.NewService(store, mailer, sessions,
//		append(opts, auth.WithHasher(hasher.NewFromConfig(hashCfg)), auth.WithLogger(log))...,
//	)
//	acc, err := svc.Register(ctx, auth.RegisterInput{...})
package auth
