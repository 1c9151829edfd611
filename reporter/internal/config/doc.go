// Package config loads and watches the reporter configuration file.
//
// Top-level types:
//   - Config{Logging, Schedule, Window, Fetch, Output, Metrics, Reports}
//   - Report: name, kind (pagerduty_incidents | statuspage_slo |
//     statuspage_incidents | pingdom_outages | pingdom_slo), source, prefix,
//     encoding, time_format, days_back, partition_by_day, rules, hours, credit
//   - Source: base_url, page_id, page_size, auth
//   - AuthConfig: mode (token | bearer | oauth | none) and token_env; Token()
//     resolves the key from the environment
//   - OutputConfig: sink (s3 | dir), dir, s3 bucket/region/endpoint and
//     credential env names
//
// Load(path) reads the YAML file, applies defaults (1 day back, 10 concurrent
// requests, 09-17 working hours, jsonl output), fills kind-dependent report
// defaults, applies SLAREPORT_* environment overrides, then validates.
//
// Watch(ctx, path, onChange) uses fsnotify to detect file changes and calls
// onChange with the newly parsed Config. It re-adds the watch after each
// event so atomic-save editors (rename then create) keep being followed.
package config
