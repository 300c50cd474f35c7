// Package logging provides structured logging helpers for mailcal.
//
// All components log through log/slog. This package centralizes attribute
// names and the redaction rules that keep credentials and identifiers out of
// log output.
//
// # Usage Patterns
//
//	logger := logging.WithOperation(slog.Default(), "gate.ensure")
//	logger.Info("access granted",
//	    logging.Session(sessionID),
//	    logging.Capabilities(caps))
//
// # Security Considerations
//
//   - Access and refresh tokens are never logged; use SanitizeToken.
//   - Session ids are bearer values too; Session hashes them.
//   - Email addresses are hashed with AnonymizeEmail.
package logging
