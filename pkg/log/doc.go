/*
Package log provides structured logging for a DWN process using zerolog.

The log package wraps zerolog to provide JSON-structured logging with
component-specific loggers, configurable log levels, and helper functions for
common logging patterns. All logs include timestamps and support filtering by
severity level for production debugging.

# Core Components

Global Logger:
  - Package-level zerolog.Logger instance
  - Initialized once via log.Init()
  - Accessible from every package in this module
  - Thread-safe concurrent writes

Log Levels:
  - Debug: Detailed debugging information
  - Info: General informational messages
  - Warn: Warning messages (potential issues)
  - Error: Error messages (operation failed)
  - Fatal: Critical errors (process exits)

Configuration:
  - Level: Filter messages below threshold
  - JSONOutput: JSON vs human-readable console
  - Output: io.Writer for log destination (stdout, file)

Context Loggers:
  - WithComponent: Add component name to all logs
  - WithTenantDid: Add tenant DID context
  - WithRecordId: Add record ID context
  - WithTaskID: Add resumable task ID context

# Usage

Initializing the Logger:

	import "github.com/cuemby/dwn/pkg/log"

	// JSON output (production)
	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

	// Console output (development)
	log.Init(log.Config{
		Level:      log.DebugLevel,
		JSONOutput: false,
		Output:     os.Stdout,
	})

Simple Logging:

	log.Info("dwn opened")
	log.Debug("checking task queue")
	log.Warn("subscriber channel full, dropping event")
	log.Error("failed to process message")
	log.Fatal("cannot open data directory") // Exits process

Structured Logging:

	log.Logger.Info().
		Str("tenant_did", tenantDid).
		Str("interface", "Records").
		Str("method", "Write").
		Msg("message processed")

	log.Logger.Error().
		Err(err).
		Str("record_id", recordId).
		Msg("records read failed")

Component Loggers:

	dwnLog := log.WithComponent("dwn-serve")
	dwnLog.Info().Msg("opening data directory")

	taskLog := log.WithComponent("tasks").
		With().Str("tenant_did", tenantDid).
		Str("task_id", taskId).Logger()
	taskLog.Info().Msg("task enqueued")
	taskLog.Error().Err(err).Msg("task attempt failed")

Context Logger Helpers:

	tenantLog := log.WithTenantDid("did:example:alice")
	tenantLog.Info().Msg("tenant message accepted")

	recordLog := log.WithRecordId("bafyrei...")
	recordLog.Info().Msg("record tombstoned")

	taskLog := log.WithTaskID("01HXYZ...")
	taskLog.Info().Msg("task resumed after crash")

# Integration Points

This package integrates with:

  - pkg/dwn: Logs message-processing failures and record writes/deletes
  - pkg/tasks: Logs task retries and completions
  - cmd/dwn: Logs serve startup, shutdown, and metrics server errors

# Security

Log Content:
  - Never log secrets, private keys, or decrypted payload data
  - Use structured fields (.Str, .Int) instead of string interpolation to
    avoid log injection from untrusted message content
  - Review logs before sharing externally

# Best Practices

Do:
  - Use Info level for production
  - Use structured fields for queryable data
  - Create component-specific loggers
  - Log errors with .Err() for stack traces
  - Include context (tenant DID, record ID, task ID)

Don't:
  - Log message payload data or private keys
  - Use Debug level in production
  - Log in tight loops (use sampling)
  - Concatenate strings (use .Str, .Int)

# See Also

  - Zerolog documentation: https://github.com/rs/zerolog
*/
package log
