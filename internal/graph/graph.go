// Package graph projects a model into a causal graph for visualization and
// structural queries: which stocks feed which, upstream and downstream
// closures, and focused subgraphs.
package graph

import (
	"sort"

	"github.com/driftlab/stockflow/internal/model"
)

// categoryColors assigns a display color per state category. Unknown
// categories fall back to neutral gray.
var categoryColors = map[string]string{
	"capability": "#4e79a7",
	"governance": "#59a14f",
	"execution":  "#f28e2b",
	"risk":       "#e15759",
	"market":     "#b07aa1",
}

const defaultColor = "#bab0ac"

// Node is one stock in the projected graph.
type Node struct {
	Symbol          string `json:"id"`
	Type            string `json:"type"`
	Label           string `json:"label"`
	Short           string `json:"short,omitempty"`
	Category        string `json:"category,omitempty"`
	Description     string `json:"description,omitempty"`
	BusinessMeaning string `json:"business_meaning,omitempty"`
	Color           string `json:"color"`
}

// Edge is one causal link. Polarity is "negative" when the relation's
// coefficient is below zero or its transform inverts the signal, otherwise
// "positive".
type Edge struct {
	ID          string  `json:"id"`
	Source      string  `json:"source"`
	Target      string  `json:"target"`
	Polarity    string  `json:"type"`
	Label       string  `json:"label"`
	Coefficient float64 `json:"coefficient"`
}

// Graph is the projected causal structure. Node and edge listings are always
// sorted, so identical models project to identical output.
type Graph struct {
	nodes    map[string]*Node
	edges    []*Edge
	outgoing map[string][]string // source -> targets
	incoming map[string][]string // target -> sources
}

// Project builds the causal graph for a model. Relations without a source
// (constant influences) contribute no edge.
func Project(m *model.Model) *Graph {
	g := &Graph{
		nodes:    make(map[string]*Node, len(m.States)),
		outgoing: make(map[string][]string),
		incoming: make(map[string][]string),
	}

	for _, sym := range m.StateSymbols() {
		st := m.States[sym]
		color, ok := categoryColors[st.Category]
		if !ok {
			color = defaultColor
		}
		g.nodes[sym] = &Node{
			Symbol:          sym,
			Type:            "stock",
			Label:           st.Name,
			Short:           st.Short,
			Category:        st.Category,
			Description:     st.Description,
			BusinessMeaning: st.BusinessMeaning,
			Color:           color,
		}
	}

	for _, rel := range m.Relations {
		if rel.Source == "" {
			continue
		}
		if _, ok := g.nodes[rel.Source]; !ok {
			continue
		}
		if _, ok := g.nodes[rel.Target]; !ok {
			continue
		}

		polarity := "positive"
		if rel.Coefficient < 0 || rel.Transform == "invert" {
			polarity = "negative"
		}

		g.edges = append(g.edges, &Edge{
			ID:          rel.ID,
			Source:      rel.Source,
			Target:      rel.Target,
			Polarity:    polarity,
			Label:       rel.Source + " → " + rel.Target,
			Coefficient: rel.Coefficient,
		})
		if !contains(g.outgoing[rel.Source], rel.Target) {
			g.outgoing[rel.Source] = append(g.outgoing[rel.Source], rel.Target)
		}
		if !contains(g.incoming[rel.Target], rel.Source) {
			g.incoming[rel.Target] = append(g.incoming[rel.Target], rel.Source)
		}
	}

	sort.Slice(g.edges, func(i, j int) bool { return g.edges[i].ID < g.edges[j].ID })
	for _, adj := range g.outgoing {
		sort.Strings(adj)
	}
	for _, adj := range g.incoming {
		sort.Strings(adj)
	}

	return g
}

// Nodes returns every node sorted by symbol.
func (g *Graph) Nodes() []*Node {
	nodes := make([]*Node, 0, len(g.nodes))
	for _, node := range g.nodes {
		nodes = append(nodes, node)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Symbol < nodes[j].Symbol })
	return nodes
}

// Edges returns every edge sorted by ID.
func (g *Graph) Edges() []*Edge {
	return g.edges
}

// Node returns one node by symbol.
func (g *Graph) Node(symbol string) (*Node, bool) {
	node, ok := g.nodes[symbol]
	return node, ok
}

// Sources returns the symbols that directly influence the given stock.
func (g *Graph) Sources(symbol string) []string {
	return g.incoming[symbol]
}

// Targets returns the symbols the given stock directly influences.
func (g *Graph) Targets(symbol string) []string {
	return g.outgoing[symbol]
}

// Upstream returns every stock that can reach the given one, directly or
// transitively. The symbol itself is not included.
func (g *Graph) Upstream(symbol string) []string {
	return g.closure(symbol, g.incoming)
}

// Downstream returns every stock reachable from the given one, directly or
// transitively. The symbol itself is not included.
func (g *Graph) Downstream(symbol string) []string {
	return g.closure(symbol, g.outgoing)
}

func (g *Graph) closure(symbol string, adjacency map[string][]string) []string {
	seen := make(map[string]bool)

	var visit func(s string)
	visit = func(s string) {
		for _, next := range adjacency[s] {
			if !seen[next] {
				seen[next] = true
				visit(next)
			}
		}
	}
	visit(symbol)
	delete(seen, symbol)

	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Subgraph extracts the neighborhood of one stock: the stock itself plus its
// direct sources and targets, with only the edges among them.
func (g *Graph) Subgraph(symbol string) *Graph {
	keep := map[string]bool{symbol: true}
	for _, s := range g.incoming[symbol] {
		keep[s] = true
	}
	for _, s := range g.outgoing[symbol] {
		keep[s] = true
	}

	sub := &Graph{
		nodes:    make(map[string]*Node),
		outgoing: make(map[string][]string),
		incoming: make(map[string][]string),
	}
	for sym := range keep {
		if node, ok := g.nodes[sym]; ok {
			sub.nodes[sym] = node
		}
	}
	for _, edge := range g.edges {
		if keep[edge.Source] && keep[edge.Target] {
			sub.edges = append(sub.edges, edge)
			sub.outgoing[edge.Source] = append(sub.outgoing[edge.Source], edge.Target)
			sub.incoming[edge.Target] = append(sub.incoming[edge.Target], edge.Source)
		}
	}
	return sub
}

func contains(slice []string, s string) bool {
	for _, item := range slice {
		if item == s {
			return true
		}
	}
	return false
}
