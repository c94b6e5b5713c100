// Package httputil writes JSON and problem-document responses in the shape
// the mailing list API uses, for handlers that stand in for it.
package httputil
