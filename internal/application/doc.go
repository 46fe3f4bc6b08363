// Package application wires the playground server together. It creates the
// program cache, API handlers, router and HTTP server, keeping the main
// package focused on CLI parsing and orchestration.
package application
