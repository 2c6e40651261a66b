// Package config loads and validates folio configuration.
//
// Values come from built-in defaults, an optional YAML file, FOLIO_*
// environment variables and command line flags, in increasing precedence.
// Nested keys map to environment variables by joining with underscores:
//
//	server.port            FOLIO_SERVER_PORT
//	storage.url            FOLIO_STORAGE_URL
//	storage.replica_urls   FOLIO_STORAGE_REPLICA_URLS (comma separated)
//	search.max_limit       FOLIO_SEARCH_MAX_LIMIT
//	search.cursor_secret   FOLIO_SEARCH_CURSOR_SECRET
//
// Example folio.yaml:
//
//	storage:
//	  driver: postgres
//	  url: postgres://folio@localhost/folio?sslmode=disable
//	redis:
//	  enabled: true
//	  url: redis://localhost:6379/0
//	search:
//	  default_limit: 20
//	  max_limit: 100
//	  property_policy:
//	    - entity: posts
//	      prefix: customFields.internal_notes
//	      scope: posts:internal
//
// Property policy rules are a list rather than a map so that camelCase
// property paths survive viper's case-insensitive keys.
package config
