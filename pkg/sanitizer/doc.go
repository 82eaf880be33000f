// Package sanitizer normalizes user-supplied account fields before they are
// validated, compared or stored.
package sanitizer
