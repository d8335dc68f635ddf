// Package log provides slog handlers that keep secrets and collected
// personal data out of log output.
//
// SecureHandler wraps any slog.Handler and rewrites attributes before they
// reach it:
//   - credential keys (authorization, cookie, token, password, hash_salt, ...)
//     are replaced by MaskValue
//   - keys that carry collected field values ("value", "field_value") are
//     replaced by MaskValue
//   - credential-looking values (bearer and basic auth, JWTs, private keys)
//     are replaced by MaskValue
//   - email addresses, phone numbers and card numbers inside any string
//     value are replaced by placeholders, so URLs and messages stay readable
//
// Even in verbose mode nothing collected by the crawler is written verbatim.
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	slog.SetDefault(logger)
//	logger.Info("fetched", "url", "https://example.com/?contact=jane@example.com")
//	// url=https://example.com/?contact=[email]
package log
