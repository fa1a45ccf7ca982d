// Package plan holds the membership plan catalog: prices, billing intervals,
// trial length, monthly quotas (0 = unlimited) and feature flags. The catalog
// is loaded once at startup from YAML or Postgres and is read-only afterwards.
package plan
