// Package middleware wraps a ports.SessionStore with at-rest protections:
// AES-GCM envelope encryption with key rotation and masking of sensitive
// processing inputs.
package middleware
