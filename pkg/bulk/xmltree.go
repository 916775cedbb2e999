package bulk

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// xmlNode is a namespace-agnostic element tree that keeps character data
// and child elements in document order, which struct decoding cannot.
type xmlNode struct {
	name     string
	attrs    []xml.Attr
	children []*xmlNode
	items    []xmlItem
}

type xmlItem struct {
	text string
	node *xmlNode
}

func parseXMLTree(reader io.Reader) (*xmlNode, error) {
	decoder := xml.NewDecoder(reader)
	decoder.Strict = false

	var root *xmlNode
	var stack []*xmlNode

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse XML: %w", err)
		}

		switch typed := token.(type) {
		case xml.StartElement:
			node := &xmlNode{name: typed.Name.Local, attrs: typed.Attr}
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, node)
				parent.items = append(parent.items, xmlItem{node: node})
			} else if root == nil {
				root = node
			}
			stack = append(stack, node)
		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case xml.CharData:
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.items = append(parent.items, xmlItem{text: string(typed)})
			}
		}
	}

	if root == nil {
		return nil, fmt.Errorf("failed to parse XML: no root element")
	}
	return root, nil
}

// child returns the first direct child with the given local name.
func (node *xmlNode) child(name string) *xmlNode {
	for _, child := range node.children {
		if child.name == name {
			return child
		}
	}
	return nil
}

func (node *xmlNode) childrenNamed(name string) []*xmlNode {
	var matches []*xmlNode
	for _, child := range node.children {
		if child.name == name {
			matches = append(matches, child)
		}
	}
	return matches
}

// descendants returns every element below node with the given local name,
// in document order, without descending into matches.
func (node *xmlNode) descendants(name string) []*xmlNode {
	var matches []*xmlNode
	for _, child := range node.children {
		if child.name == name {
			matches = append(matches, child)
			continue
		}
		matches = append(matches, child.descendants(name)...)
	}
	return matches
}

func (node *xmlNode) attr(name string) string {
	for _, attribute := range node.attrs {
		if attribute.Name.Local == name {
			return attribute.Value
		}
	}
	return ""
}

// innerText concatenates all character data below node in document order.
func (node *xmlNode) innerText() string {
	var builder strings.Builder
	node.writeText(&builder)
	return strings.TrimSpace(builder.String())
}

func (node *xmlNode) writeText(builder *strings.Builder) {
	for _, item := range node.items {
		if item.node != nil {
			item.node.writeText(builder)
			continue
		}
		builder.WriteString(item.text)
	}
}

// childText returns the trimmed text of the named child, or "".
func (node *xmlNode) childText(name string) string {
	if child := node.child(name); child != nil {
		return child.innerText()
	}
	return ""
}
