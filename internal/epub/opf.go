package epub

import (
	"errors"
	"fmt"
	"strings"
)

const dcNamespace = "http://purl.org/dc/elements/1.1/"

// UnknownTitle is used when no title lookup succeeds.
const UnknownTitle = "Unknown Title"

// ManifestItem is one declared file of the package.
type ManifestItem struct {
	ID         string
	Path       string
	MediaType  string
	Properties string
}

type packageDocument struct {
	path     string
	tree     *xmlNode
	manifest map[string]ManifestItem
	items    []ManifestItem
	spine    []string
}

func parsePackageDocument(a *Archive, opfPath string) (*packageDocument, error) {
	data, err := a.ReadFile(opfPath)
	if err != nil {
		if errors.Is(err, errEntryMissing) {
			return nil, fmt.Errorf("%w: package document %s not found", ErrInvalidArchive, opfPath)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidArchive, err)
	}
	tree, err := parseXMLTree(data)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed package document: %v", ErrInvalidArchive, err)
	}

	pkg := &packageDocument{
		path:     opfPath,
		tree:     tree,
		manifest: make(map[string]ManifestItem),
	}

	scope := tree.find(func(n *xmlNode) bool { return n.is("manifest") })
	if scope == nil {
		scope = tree
	}
	for _, n := range scope.findAll(func(n *xmlNode) bool { return n.is("item") }) {
		id := n.attr("id")
		resolved := resolveRelativePath(opfPath, n.attr("href"))
		if id == "" || resolved == "" {
			continue
		}
		if _, dup := pkg.manifest[id]; dup {
			continue
		}
		item := ManifestItem{
			ID:         id,
			Path:       resolved,
			MediaType:  strings.ToLower(n.attr("media-type")),
			Properties: n.attr("properties"),
		}
		pkg.manifest[id] = item
		pkg.items = append(pkg.items, item)
	}

	if spine := tree.find(func(n *xmlNode) bool { return n.is("spine") }); spine != nil {
		for _, ref := range spine.findAll(func(n *xmlNode) bool { return n.is("itemref") }) {
			if idref := ref.attr("idref"); idref != "" {
				pkg.spine = append(pkg.spine, idref)
			}
		}
	}
	return pkg, nil
}

// titleStrategy is one step of the title lookup chain.
type titleStrategy struct {
	name string
	find func(tree *xmlNode) (string, bool)
}

// titleStrategies run in order; the first non-empty result wins.
var titleStrategies = []titleStrategy{
	{name: "dc-title", find: dcTitle},
	{name: "title-element", find: anyTitleElement},
	{name: "meta-attribute", find: metaTitle},
}

func resolveTitle(tree *xmlNode) string {
	for _, s := range titleStrategies {
		if title, ok := s.find(tree); ok {
			return title
		}
	}
	return UnknownTitle
}

func dcTitle(tree *xmlNode) (string, bool) {
	return firstText(tree, func(n *xmlNode) bool {
		return n.is("title") && (n.Name.Space == dcNamespace || n.Name.Space == "dc")
	})
}

func anyTitleElement(tree *xmlNode) (string, bool) {
	return firstText(tree, func(n *xmlNode) bool { return n.is("title") })
}

func metaTitle(tree *xmlNode) (string, bool) {
	var title string
	tree.walk(func(n *xmlNode) bool {
		if !n.is("meta") {
			return true
		}
		key := strings.ToLower(n.attr("name"))
		if key == "" {
			key = strings.ToLower(n.attr("property"))
		}
		switch key {
		case "title", "dc:title", "dc.title", "dcterms:title":
		default:
			return true
		}
		if v := n.attr("content"); v != "" {
			title = v
			return false
		}
		if v := n.textContent(); v != "" {
			title = v
			return false
		}
		return true
	})
	return title, title != ""
}

func firstText(tree *xmlNode, pred func(*xmlNode) bool) (string, bool) {
	var text string
	tree.walk(func(n *xmlNode) bool {
		if pred(n) {
			if t := n.textContent(); t != "" {
				text = t
				return false
			}
		}
		return true
	})
	return text, text != ""
}
