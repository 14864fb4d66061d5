package docconv

import (
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// ImageLinks returns the destinations of all image references in a
// Markdown document, in document order. The assistant instruction tells
// the model to include these links when the surrounding text is cited.
func ImageLinks(markdown []byte) []string {
	md := goldmark.New()
	root := md.Parser().Parse(text.NewReader(markdown))

	var links []string
	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if img, ok := n.(*ast.Image); ok {
			links = append(links, string(img.Destination))
		}
		return ast.WalkContinue, nil
	})
	return links
}
