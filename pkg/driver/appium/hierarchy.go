package appium

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/devicelab-dev/appui-runner/pkg/core"
)

// Bounds is an element rectangle in screen pixels.
type Bounds struct {
	X, Y, Width, Height int
}

// Center returns the center point of the rectangle.
func (b Bounds) Center() Point {
	return Point{X: b.X + b.Width/2, Y: b.Y + b.Height/2}
}

// Node is one element of an Android UI hierarchy dump.
type Node struct {
	Class       string
	ResourceID  string
	Text        string
	ContentDesc string
	Bounds      Bounds
	Enabled     bool
	Displayed   bool
	Clickable   bool
	Depth       int
}

// Locator returns the most specific locator that addresses the node:
// resource-id, then content-desc, then class name.
func (n *Node) Locator() core.Locator {
	switch {
	case n.ResourceID != "":
		return core.ByID(n.ResourceID)
	case n.ContentDesc != "":
		return core.ByAccessibilityID(n.ContentDesc)
	default:
		return core.ByClassName(n.Class)
	}
}

// Matches reports whether the node satisfies an id, class name or
// accessibility id locator. Other strategies are never matched.
func (n *Node) Matches(loc core.Locator) bool {
	switch loc.Strategy {
	case core.StrategyID:
		return n.ResourceID == loc.Value
	case core.StrategyClassName:
		return n.Class == loc.Value
	case core.StrategyAccessibilityID:
		return n.ContentDesc == loc.Value
	}
	return false
}

// ParseHierarchy flattens UiAutomator2 page source XML into depth-first order.
func ParseHierarchy(source string) ([]*Node, error) {
	decoder := xml.NewDecoder(strings.NewReader(source))

	var nodes []*Node
	depth := -1
	foundHierarchy := false
	for {
		token, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse hierarchy: %w", err)
		}

		switch t := token.(type) {
		case xml.StartElement:
			if t.Name.Local == "hierarchy" {
				foundHierarchy = true
				continue
			}
			depth++
			nodes = append(nodes, nodeFromElement(t, depth))
		case xml.EndElement:
			if t.Name.Local != "hierarchy" {
				depth--
			}
		}
	}

	if !foundHierarchy {
		return nil, fmt.Errorf("invalid page source: no hierarchy element found")
	}
	return nodes, nil
}

func nodeFromElement(t xml.StartElement, depth int) *Node {
	n := &Node{Class: t.Name.Local, Depth: depth, Displayed: true}
	for _, attr := range t.Attr {
		switch attr.Name.Local {
		case "class":
			n.Class = attr.Value
		case "resource-id":
			n.ResourceID = attr.Value
		case "text":
			n.Text = attr.Value
		case "content-desc":
			n.ContentDesc = attr.Value
		case "bounds":
			n.Bounds = parseBounds(attr.Value)
		case "enabled":
			n.Enabled = attr.Value == "true"
		case "displayed":
			n.Displayed = attr.Value != "false"
		case "clickable":
			n.Clickable = attr.Value == "true"
		}
	}
	return n
}

// FilterClickable returns the displayed, clickable nodes.
func FilterClickable(nodes []*Node) []*Node {
	var result []*Node
	for _, n := range nodes {
		if n.Clickable && n.Displayed {
			result = append(result, n)
		}
	}
	return result
}

// parseBounds parses Android bounds string "[x1,y1][x2,y2]".
func parseBounds(s string) Bounds {
	s = strings.ReplaceAll(s, "][", ",")
	s = strings.Trim(s, "[]")
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return Bounds{}
	}

	x1, _ := strconv.Atoi(parts[0])
	y1, _ := strconv.Atoi(parts[1])
	x2, _ := strconv.Atoi(parts[2])
	y2, _ := strconv.Atoi(parts[3])

	return Bounds{
		X:      x1,
		Y:      y1,
		Width:  x2 - x1,
		Height: y2 - y1,
	}
}
