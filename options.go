package arc

import "log/slog"

// Option configures a Reader at open time. The core consumes only resolved
// values; parsing configuration from files or flags belongs to the caller.
type Option func(*Reader)

// WithPassword sets the archive-level password used to decrypt encrypted
// members. Individual operations may override it.
func WithPassword(password string) Option {
	return func(r *Reader) {
		r.password = password
	}
}

// WithLogger sets the logger for diagnostic output. By default nothing is
// logged.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reader) {
		r.logger = logger
	}
}

// WithStreamingOnly forces the reader into streaming-only mode even when
// the backend supports random access. Useful for very large archives where
// a single forward pass is cheaper.
func WithStreamingOnly(enabled bool) Option {
	return func(r *Reader) {
		r.forceStreaming = enabled
	}
}

// WithOverwriteMode sets the default overwrite policy for extraction.
// The default is OverwriteError.
func WithOverwriteMode(mode OverwriteMode) Option {
	return func(r *Reader) {
		r.overwrite = mode
	}
}

// WithExtractionFilter sets the default extraction filter.
// The default is FilterData, the conservative choice.
func WithExtractionFilter(filter FilterFunc) Option {
	return func(r *Reader) {
		r.filter = filter
	}
}

// WithAltGzip selects the alternate gzip codec for gzip-compressed inputs.
// The alternate decoder is faster on large streams; the default is the
// standard library's.
func WithAltGzip(enabled bool) Option {
	return func(r *Reader) {
		r.codec.AltGzip = enabled
	}
}

// WithMaxDecoderMemory limits the maximum memory used by the zstd decoder.
// Set limit to 0 to disable the limit.
func WithMaxDecoderMemory(limit uint64) Option {
	return func(r *Reader) {
		r.codec.MaxDecoderMemory = limit
	}
}
