package gguf

import "net/url"

type readOptions struct {
	Debug bool

	// Remote.
	ProxyURL            *url.URL
	SkipProxy           bool
	SkipTLSVerification bool
	SkipDNSCache        bool
	BufferSize          int
	BearerToken         string
	BLAKE2bChecksum     string
}

// ReadOption configures ParseRemote.
type ReadOption func(o *readOptions)

// WithDebug enables verbose HTTP tracing on remote loads.
func WithDebug() ReadOption {
	return func(o *readOptions) { o.Debug = true }
}

// WithProxy routes remote loads through the given proxy URL.
func WithProxy(u *url.URL) ReadOption {
	return func(o *readOptions) { o.ProxyURL = u }
}

// WithoutProxy disables proxy usage for remote loads.
func WithoutProxy() ReadOption {
	return func(o *readOptions) { o.SkipProxy = true }
}

// WithoutTLSVerification disables TLS certificate verification for remote
// loads. Intended for trusted internal registries only.
func WithoutTLSVerification() ReadOption {
	return func(o *readOptions) { o.SkipTLSVerification = true }
}

// WithoutDNSCache disables the cached resolver for remote loads.
func WithoutDNSCache() ReadOption {
	return func(o *readOptions) { o.SkipDNSCache = true }
}

// WithBufferSize sets the ring-buffer size used to stream a remote file.
func WithBufferSize(size int) ReadOption {
	const minSize = 32 * 1024
	if size < minSize {
		size = minSize
	}
	return func(o *readOptions) { o.BufferSize = size }
}

// WithBearerToken sets the Authorization header for remote loads.
func WithBearerToken(token string) ReadOption {
	return func(o *readOptions) { o.BearerToken = token }
}

// WithBLAKE2bChecksum verifies the header, metadata, and tensor-info bytes
// read eagerly from a remote file against a known BLAKE2b-256 digest (hex
// encoded), catching a truncated or tampered transfer before any tensor
// data is trusted. Tensor bytes fetched lazily afterward are not covered.
func WithBLAKE2bChecksum(hex string) ReadOption {
	return func(o *readOptions) { o.BLAKE2bChecksum = hex }
}
