package epub

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"strings"

	"golang.org/x/net/html/charset"
)

// xmlNode is a minimal element tree. Package documents in the wild mix
// namespaced and bare elements, so lookups run over this tree by local name
// instead of through fixed struct mappings.
type xmlNode struct {
	Name     xml.Name
	Attr     []xml.Attr
	Children []*xmlNode
	Text     string
}

func parseXMLTree(data []byte) (*xmlNode, error) {
	dec := xml.NewDecoder(bytes.NewReader(stripBOM(data)))
	dec.Strict = false
	dec.Entity = xml.HTMLEntity
	dec.CharsetReader = charset.NewReaderLabel

	root := &xmlNode{}
	stack := []*xmlNode{root}
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		top := stack[len(stack)-1]
		switch t := tok.(type) {
		case xml.StartElement:
			n := &xmlNode{Name: t.Name, Attr: append([]xml.Attr(nil), t.Attr...)}
			top.Children = append(top.Children, n)
			stack = append(stack, n)
		case xml.EndElement:
			if len(stack) > 1 {
				stack = stack[:len(stack)-1]
			}
		case xml.CharData:
			top.Text += string(t)
		}
	}
	if len(root.Children) == 0 {
		return nil, errors.New("document has no elements")
	}
	return root, nil
}

// attr returns the value of the attribute with the given local name.
func (n *xmlNode) attr(local string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Name.Local, local) {
			return strings.TrimSpace(a.Value)
		}
	}
	return ""
}

func (n *xmlNode) is(local string) bool {
	return strings.EqualFold(n.Name.Local, local)
}

// walk visits n and its descendants in document order until fn returns false.
func (n *xmlNode) walk(fn func(*xmlNode) bool) bool {
	if !fn(n) {
		return false
	}
	for _, c := range n.Children {
		if !c.walk(fn) {
			return false
		}
	}
	return true
}

func (n *xmlNode) find(pred func(*xmlNode) bool) *xmlNode {
	var found *xmlNode
	n.walk(func(c *xmlNode) bool {
		if pred(c) {
			found = c
			return false
		}
		return true
	})
	return found
}

func (n *xmlNode) findAll(pred func(*xmlNode) bool) []*xmlNode {
	var out []*xmlNode
	n.walk(func(c *xmlNode) bool {
		if pred(c) {
			out = append(out, c)
		}
		return true
	})
	return out
}

// textContent concatenates the character data of n and its descendants.
func (n *xmlNode) textContent() string {
	var b strings.Builder
	n.walk(func(c *xmlNode) bool {
		b.WriteString(c.Text)
		return true
	})
	return strings.Join(strings.Fields(b.String()), " ")
}
