package config

// DefaultConfigYAML contains the default configuration YAML content.
// This is used by `weft init` to seed a project.
const DefaultConfigYAML = `# weft configuration
#
# Values not specified here use built-in defaults. Every key can be
# overridden with a WEFT_ environment variable, e.g. WEFT_ENGINE_MAX_PARALLEL.

log:
  # debug, info, warn, error
  level: info
  # auto (pretty on a terminal, JSON otherwise), text, json
  format: auto
  # Extra regular expressions redacted from logs and task output.
  redact_patterns: []

state:
  # SQLite database holding workflows, executions and audit events.
  path: .weft/state/weft.db

engine:
  # Maximum tasks dispatched at once within a round (0 = unbounded).
  max_parallel: 0
  # Default timeout of cli_command tasks that do not set their own.
  task_timeout: 30m

cursor:
  # cursor-agent binary used by cursor_agent tasks.
  path: cursor-agent
  # model: ""
  timeout: 30m
  force: false

server:
  addr: 127.0.0.1:7420
  cors_origins: []
`
