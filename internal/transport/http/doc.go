// Package http contains the HTTP transport layer: wizard session
// management, the wizard REST handlers, the websocket upgrade endpoint
// and health checks. Handlers translate requests into controller calls
// and wizard errors into the standard API error envelope.
package http
