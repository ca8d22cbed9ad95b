// Package httpapi serves the job API over HTTP with a chi router.
//
// Routes:
//
//	POST /v1/jobs               enqueue; body carries function_name plus options
//	GET  /v1/jobs               list; query: channel, status (repeatable), limit
//	GET  /v1/jobs/{id}          describe one job
//	POST /v1/jobs/{id}/release  return a job to the pending pool
//	GET  /v1/stats              partition counts; query: channel
//	GET  /healthz               liveness
//
// Enqueue bodies must be sent as application/json. When a token is
// configured every /v1 route requires "Authorization: Bearer <token>";
// without one the server only binds to loopback.
package httpapi
