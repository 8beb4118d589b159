// Package config handles configuration loading for loom-relay.
//
// Configuration is YAML with ${VAR_NAME} environment expansion and
// time.ParseDuration syntax for timeouts:
//
//	server:
//	  http_addr: "0.0.0.0:8080"
//	database:
//	  path: "/var/lib/loom/relay.db"
//	provider:
//	  api_key: "${LOOM_PROVIDER_KEY}"
//	  model: "gpt-4o-mini"
//	  request_timeout: "30s"
//	  health_timeout: "10s"
//	auth:
//	  jwt_secret: "${LOOM_JWT_SECRET}"
//	relay:
//	  history_window: 10
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//	environment: "production"
//
// Load() validates required fields and fails fast on the first problem.
package config
