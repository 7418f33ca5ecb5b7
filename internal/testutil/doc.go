// Package testutil contains helper builders used across tests to reduce
// boilerplate when constructing persisted team members and tool calls.
// They are not intended for production usage.
package testutil
