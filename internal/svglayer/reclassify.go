// Package svglayer reorganizes a charting engine's SVG output into five
// fixed top-level layers so overlays stack the same way on every chart.
package svglayer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/beevik/etree"
	"golang.org/x/net/html/charset"
)

// ErrParse is returned when the document is not well-formed markup.
var ErrParse = errors.New("svglayer: malformed document")

// Layer ids.
const (
	LayerChartBorder = "chartborder"
	LayerZone        = "zone"
	LayerDensity     = "density"
	LayerPoints      = "points"
	LayerText        = "text"
)

// Layers lists the layer ids in paint order, back to front.
var Layers = []string{LayerChartBorder, LayerZone, LayerDensity, LayerPoints, LayerText}

// Result describes one reclassification.
type Result struct {
	Path   string
	Counts map[string]int // elements placed in each layer
	Rules  map[string]int // elements matched by each classification rule
	Merged int            // existing layer groups folded into the new ones
}

// Reclassify rewrites the SVG at path in place. The file is replaced
// atomically and left untouched on any error.
func Reclassify(path string) (Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("read svg: %w", err)
	}

	out, res, err := Rewrite(data)
	if err != nil {
		return Result{}, err
	}
	if err := WriteFile(path, out); err != nil {
		return Result{}, err
	}
	res.Path = path
	return res, nil
}

// Rewrite reclassifies an in-memory document and returns the serialized
// result. The XML declaration, if any, and namespace declarations are kept.
// Documents in another encoding are written back as UTF-8 and their
// declaration says so.
func Rewrite(data []byte) ([]byte, Result, error) {
	doc := etree.NewDocument()
	// Strict pre-pass: mismatched or unclosed tags fail before anything is
	// rewritten. Any encoding x/net/html/charset knows is read.
	doc.ReadSettings.ValidateInput = true
	doc.ReadSettings.CharsetReader = charset.NewReaderLabel
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, Result{}, fmt.Errorf("%w: %w", ErrParse, err)
	}
	root := doc.Root()
	if root == nil {
		return nil, Result{}, fmt.Errorf("%w: no root element", ErrParse)
	}
	markUTF8(doc)

	res := reorganize(root)

	out, err := doc.WriteToBytes()
	if err != nil {
		return nil, Result{}, fmt.Errorf("serialize svg: %w", err)
	}
	return out, res, nil
}

var encodingAttr = regexp.MustCompile(`encoding\s*=\s*("[^"]*"|'[^']*')`)

// markUTF8 points the XML declaration at UTF-8, which is what etree writes.
func markUTF8(doc *etree.Document) {
	for _, tok := range doc.Child {
		if pi, ok := tok.(*etree.ProcInst); ok && pi.Target == "xml" {
			pi.Inst = encodingAttr.ReplaceAllString(pi.Inst, `encoding="UTF-8"`)
			return
		}
	}
}

// reorganize empties root and refills it with the five layer groups. The
// groups take the root's prefix so they stay in the SVG namespace when the
// document declares it under a prefix.
func reorganize(root *etree.Element) Result {
	children := append([]etree.Token(nil), root.Child...)
	for len(root.Child) > 0 {
		root.RemoveChildAt(len(root.Child) - 1)
	}

	groupTag := "g"
	if root.Space != "" {
		groupTag = root.Space + ":g"
	}
	layers := make(map[string]*etree.Element, len(Layers))
	for _, id := range Layers {
		g := root.CreateElement(groupTag)
		g.CreateAttr("id", id)
		layers[id] = g
	}

	res := Result{
		Counts: make(map[string]int, len(Layers)),
		Rules:  make(map[string]int),
	}

	for _, tok := range children {
		switch t := tok.(type) {
		case *etree.Element:
			if prior := priorLayer(t, root.Space); prior != "" {
				moveChildren(t, layers[prior], &res, prior)
				res.Merged++
				continue
			}
			layer, rule := classify(t)
			layers[layer].AddChild(t)
			res.Counts[layer]++
			res.Rules[rule]++
		case *etree.CharData:
			if t.IsWhitespace() {
				continue
			}
			layers[LayerChartBorder].AddChild(t)
		default:
			layers[LayerChartBorder].AddChild(t)
		}
	}
	return res
}

// priorLayer returns the layer id when el is a group exactly as an earlier
// run writes it: a g in the root's namespace prefix whose only attribute is
// a layer id. Anything else, including a g that merely shares a layer id,
// is classified like any other element.
func priorLayer(el *etree.Element, space string) string {
	if el.Tag != "g" || el.Space != space || len(el.Attr) != 1 {
		return ""
	}
	a := el.Attr[0]
	if a.Space != "" || a.Key != "id" {
		return ""
	}
	id := a.Value
	for _, l := range Layers {
		if id == l {
			return l
		}
	}
	return ""
}

func moveChildren(from, to *etree.Element, res *Result, layer string) {
	tokens := append([]etree.Token(nil), from.Child...)
	for _, tok := range tokens {
		if cd, ok := tok.(*etree.CharData); ok && cd.IsWhitespace() {
			continue
		}
		to.AddChild(tok)
		if _, ok := tok.(*etree.Element); ok {
			res.Counts[layer]++
		}
	}
}

// WriteFile replaces path with data through a temporary file in the same
// directory, keeping the original file mode.
func WriteFile(path string, data []byte) error {
	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("write svg: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write svg: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write svg: %w", err)
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		return fmt.Errorf("write svg: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("write svg: %w", err)
	}
	return nil
}
