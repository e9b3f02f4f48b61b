package dsl

import (
	"math"
	"sort"
)

// funcSpec describes one whitelisted function: its arity bounds and
// implementation. maxArgs of -1 means variadic.
type funcSpec struct {
	minArgs int
	maxArgs int
	impl    func(args []float64) float64
}

// registry is the closed set of callable functions. Nothing outside this map
// is ever invocable from an expression.
var registry = map[string]funcSpec{
	"clamp": {3, 3, func(a []float64) float64 {
		return math.Max(a[1], math.Min(a[2], a[0]))
	}},
	"min": {2, -1, func(a []float64) float64 {
		m := a[0]
		for _, v := range a[1:] {
			m = math.Min(m, v)
		}
		return m
	}},
	"max": {2, -1, func(a []float64) float64 {
		m := a[0]
		for _, v := range a[1:] {
			m = math.Max(m, v)
		}
		return m
	}},
	"abs": {1, 1, func(a []float64) float64 {
		return math.Abs(a[0])
	}},
	"sigmoid": {1, 2, func(a []float64) float64 {
		k := 1.0
		if len(a) > 1 {
			k = a[1]
		}
		return 1 / (1 + math.Exp(-k*a[0]))
	}},
	"step": {1, 2, func(a []float64) float64 {
		threshold := 0.0
		if len(a) > 1 {
			threshold = a[1]
		}
		if a[0] >= threshold {
			return 1
		}
		return 0
	}},
	"smoothstep": {1, 3, func(a []float64) float64 {
		edge0, edge1 := 0.0, 1.0
		if len(a) > 1 {
			edge0 = a[1]
		}
		if len(a) > 2 {
			edge1 = a[2]
		}
		x := a[0]
		switch {
		case x < edge0:
			return 0
		case x > edge1:
			return 1
		default:
			t := (x - edge0) / (edge1 - edge0)
			return t * t * (3 - 2*t)
		}
	}},
	"exp": {1, 1, func(a []float64) float64 {
		return math.Exp(a[0])
	}},
	"log": {1, 1, func(a []float64) float64 {
		if a[0] <= 0 {
			return math.Inf(-1)
		}
		return math.Log(a[0])
	}},
}

// AllowedFunctions returns the sorted names of the whitelisted functions.
func AllowedFunctions() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
