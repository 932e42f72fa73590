// Package api is the HTTP surface of the task service. It decodes and
// validates requests, calls the task engine and maps engine errors to status
// codes and sanitized messages. Routing and middleware are built with chi.
package api
