// Package dedupe drops realtime send frames that a client resends with the
// same clientMessageId within a configurable window.
package dedupe
