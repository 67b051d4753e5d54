package epub

import (
	"errors"
	"fmt"
	"strings"
)

// ContainerPath is the fixed location of the container pointer file.
const ContainerPath = "META-INF/container.xml"

// packageDocumentPath reads the container pointer and returns the archive
// path of the package document it declares.
func packageDocumentPath(a *Archive) (string, error) {
	data, err := a.ReadFile(ContainerPath)
	if err != nil {
		if errors.Is(err, errEntryMissing) {
			return "", fmt.Errorf("%w: no container pointer (%s)", ErrInvalidArchive, ContainerPath)
		}
		return "", fmt.Errorf("%w: %v", ErrInvalidArchive, err)
	}

	tree, err := parseXMLTree(data)
	if err != nil {
		return "", fmt.Errorf("%w: malformed container pointer: %v", ErrInvalidArchive, err)
	}

	rootfile := tree.find(func(n *xmlNode) bool {
		return n.is("rootfile") && n.attr("full-path") != ""
	})
	if rootfile == nil {
		return "", fmt.Errorf("%w: container pointer declares no package document", ErrInvalidArchive)
	}
	return strings.TrimPrefix(rootfile.attr("full-path"), "/"), nil
}
