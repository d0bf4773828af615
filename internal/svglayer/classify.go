package svglayer

import (
	"strings"

	"github.com/beevik/etree"
)

// traceHints are checked in this order; the first one found names the layer.
var traceHints = []string{LayerDensity, LayerPoints, LayerZone}

// borderKeys are the class/id fragments of axes, grids and clip groups.
var borderKeys = []string{"xaxislayer", "yaxislayer", "zerolinelayer", "gridlayer", "layer-above", "clips"}

// Classification rules, reported per element so callers can see how often
// the heuristics fall through.
const (
	RuleTrace        = "trace"
	RuleTraceDefault = "trace_default"
	RuleText         = "text"
	RuleBorder       = "border"
	RuleFallback     = "fallback"
)

// classify picks the layer for a top-level element. Rules run in order and
// the first match wins; anything unmatched falls through to chartborder so
// no element is ever dropped.
func classify(el *etree.Element) (layer, rule string) {
	class := strings.ToLower(el.SelectAttrValue("class", ""))
	id := strings.ToLower(el.SelectAttrValue("id", ""))

	if strings.Contains(class, "trace") {
		if hint := traceName(el); hint != "" {
			return hint, RuleTrace
		}
		// Unnamed series go to the overlay layer.
		return LayerZone, RuleTraceDefault
	}

	if isTextLayer(el, class, id) {
		return LayerText, RuleText
	}

	if isBorderLike(el, class, id) {
		return LayerChartBorder, RuleBorder
	}

	return LayerChartBorder, RuleFallback
}

// traceName looks for a series name in <title> text first, then in
// data-name, aria-label and id attributes anywhere in the subtree.
func traceName(el *etree.Element) string {
	var found string
	walk(el, func(e *etree.Element) bool {
		if e != el && e.Tag == "title" {
			found = matchHint(e.Text())
		}
		return found == ""
	})
	if found != "" {
		return found
	}

	walk(el, func(e *etree.Element) bool {
		for _, key := range []string{"data-name", "aria-label", "id"} {
			if found = matchHint(e.SelectAttrValue(key, "")); found != "" {
				return false
			}
		}
		return true
	})
	return found
}

func matchHint(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}
	for _, hint := range traceHints {
		if strings.Contains(s, hint) {
			return hint
		}
	}
	return ""
}

func isTextLayer(el *etree.Element, class, id string) bool {
	if strings.Contains(class, "gtitle") || strings.Contains(class, "annotation") {
		return true
	}
	if strings.Contains(id, "title") || strings.Contains(id, "annotation") {
		return true
	}
	return containsTag(el, "text")
}

func isBorderLike(el *etree.Element, class, id string) bool {
	for _, k := range borderKeys {
		if strings.Contains(class, k) || strings.Contains(id, k) {
			return true
		}
	}
	return containsTag(el, "rect") && !strings.Contains(class, "trace")
}

// containsTag reports whether el or any descendant has the given local name.
func containsTag(el *etree.Element, tag string) bool {
	found := false
	walk(el, func(e *etree.Element) bool {
		found = e.Tag == tag
		return !found
	})
	return found
}

// walk visits el and its descendants in document order until fn returns false.
func walk(el *etree.Element, fn func(*etree.Element) bool) bool {
	if !fn(el) {
		return false
	}
	for _, c := range el.ChildElements() {
		if !walk(c, fn) {
			return false
		}
	}
	return true
}
