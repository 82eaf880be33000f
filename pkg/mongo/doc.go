// Package mongo connects to MongoDB with retries and classifies driver
// errors.
package mongo
