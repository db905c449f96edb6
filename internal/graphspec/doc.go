// Package graphspec loads pipeline graph descriptors written in CUE.
//
// A graph file declares a top-level "graph" struct:
//
//	graph: {
//		title: "Echo"
//		nodes: {
//			ask: {type: "input", title: "Ask"}
//			show: {type: "output"}
//		}
//		edges: [{from: "ask", out: "text", to: "show", in: "text"}]
//	}
//
// Nodes keep their declaration order. Configuration and visual metadata
// are converted to payload values; floats are rejected.
package graphspec
