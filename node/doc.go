// Package node implements the behaviors bound into compiled team graphs:
// workers that call a model with their tools, leaders that delegate, the
// summariser that writes the final answer, tool execution, and human review.
package node
