// Package validator provides composable validation rules for account input.
//
// Each rule pairs a check with the ValidationError reported when the check
// fails. Apply evaluates rules in order and returns every failure as a single
// ValidationErrors value:
//
//	err := validator.Apply(
//		validator.ValidEmail("email", in.Email),
//		validator.StrongPassword("password", in.Password, validator.DefaultPasswordPolicy()),
//		validator.Matches("password_confirm", in.PasswordConfirm, in.Password),
//	)
package validator
