// Package config handles configuration loading for coven-sessions.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable
// expansion. A missing config file is not an error at this layer: callers
// fall back to Default(), so the tool works out of the box.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from COVEN_SESSIONS_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/coven/sessions.yaml
//  3. ~/.config/coven/sessions.yaml
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	database:
//	  path: "${COVEN_SESSIONS_DB}"
//
// Syntax: ${VAR_NAME}
//
// # Configuration Sections
//
// Database:
//
//	database:
//	  path: "~/.local/share/coven/sessions.db"
//
// Transcripts (the read-only tree the agent CLI writes):
//
//	transcripts:
//	  root: "~/.claude/projects"
//
// Logging:
//
//	logging:
//	  level: "warn"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// # Validation
//
// Load() validates:
//
//   - Database path presence
//   - Transcript root presence
//   - Logging format values
package config
