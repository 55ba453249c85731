// Package preflight provides readiness checks for the tools, credentials and
// directories a run depends on.
//
// `minutes status` and the HTTP /api/status endpoint display these results;
// `minutes process` runs them first and refuses to start a run that is bound
// to fail after minutes of model loading.
package preflight
