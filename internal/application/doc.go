// Package application provides application initialization and dependency wiring.
// It creates the request-list storage, planner handlers, router and HTTP
// server, keeping the main package focused on CLI parsing and orchestration.
package application
