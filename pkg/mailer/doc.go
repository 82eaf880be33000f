// Package mailer renders account notifications (activation, password reset,
// email change) from embedded templates and delivers them through an
// email.EmailSender. *Mailer implements auth.Mailer.
package mailer
