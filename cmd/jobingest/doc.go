// Package main is the jobingest entrypoint.
//
// Architecture overview:
//   - List phase: internal/source tries the structured search endpoint, then the
//     category page, then a built-in synthetic catalog. The first tier with a
//     usable record wins. Records are normalized by internal/normalize and
//     upserted by URL through the configured jobs.Gateway (Postgres, SQLite or
//     memory). Raw payloads can be archived to a local directory or GCS.
//   - Detail phase: internal/enrich takes the newest rows without a description,
//     renders each page in one headless Chrome tab (internal/render) and tries
//     the selector chain, the page body, then a fixed marker. Placeholder URLs
//     and runs without a browser get template descriptions.
//   - Every run gets a UUIDv7 id, holds a file lock so runs never overlap, and
//     publishes a summary (memory or Pub/Sub).
//   - Configuration comes from Viper (file plus JOBINGEST_* env); zap provides
//     structured logging; Prometheus metrics are exported by the serve command.
//
// Quick checklist:
//   - jobingest schema creates the table.
//   - jobingest list "Data Analyst" then jobingest detail, or jobingest run.
//   - jobingest serve exposes /healthz, /metrics, /v1/pending and /v1/runs/*.
package main
