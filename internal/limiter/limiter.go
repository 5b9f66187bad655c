// Package limiter provides the admission gate that bounds concurrent tracked requests.
package limiter
