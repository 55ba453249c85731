// Package server exposes the pipeline over HTTP for browser and script
// uploads.
//
// Routes:
//
//	POST   /api/jobs                   multipart field "video"; runs synchronously
//	GET    /api/jobs                   run history, newest first (?limit=N)
//	GET    /api/jobs/{id}              one stored run
//	GET    /api/jobs/{id}/export.csv   CSV download named 議事録.csv
//	GET    /api/jobs/{id}/export       ?format=csv|json|markdown
//	DELETE /api/jobs/{id}              remove a stored run
//	GET    /api/status                 readiness and busy flag
//
// A run that is already in progress makes uploads fail fast with 409.
// Pipeline failures answer 422 with {"error", "stage"}.
package server
