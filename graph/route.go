package graph

import "fmt"

// RouteKind tags a RouteDecision.
type RouteKind int

const (
	RouteContinue RouteKind = iota
	RouteCallTool
	RouteCallHuman
	RouteTerminate
)

func (k RouteKind) String() string {
	switch k {
	case RouteContinue:
		return "continue"
	case RouteCallTool:
		return "call_tool"
	case RouteCallHuman:
		return "call_human"
	case RouteTerminate:
		return "terminate"
	default:
		return fmt.Sprintf("RouteKind(%d)", int(k))
	}
}

// RouteDecision is the outcome of a Router.
type RouteDecision struct {
	Kind   RouteKind
	Target string
}

// Continue routes to node.
func Continue(node string) RouteDecision { return RouteDecision{Kind: RouteContinue, Target: node} }

// CallTool routes to a tool execution (or tool review) node.
func CallTool(node string) RouteDecision { return RouteDecision{Kind: RouteCallTool, Target: node} }

// CallHuman routes to a human input node.
func CallHuman(node string) RouteDecision { return RouteDecision{Kind: RouteCallHuman, Target: node} }

// Terminate ends the run.
func Terminate() RouteDecision { return RouteDecision{Kind: RouteTerminate, Target: End} }

// Router picks the next node from the committed state. Routers must be pure.
type Router func(s State) RouteDecision

// Route is one row of a graph's routing table.
type Route struct {
	From        string
	Conditional bool
	Targets     []string
}
