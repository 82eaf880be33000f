// Package account serves the account lifecycle as a JSON API on a chi
// router: registration and activation, password login and recovery,
// OAuth sign-in and linking, and the authenticated /me routes.
//
// Session tokens are accepted from an "Authorization: Bearer" header or the
// session cookie. Successful logins answer with
//
//	{"status":"success","token":"...","data":{"user":{...}}}
//
// and set the cookie. Failures answer with status "fail" (client errors) or
// "error" (server errors) and a machine-readable code.
package account
