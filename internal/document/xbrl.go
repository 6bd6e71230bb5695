package document

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/net/html/charset"

	"finqa/internal/domain"
)

// NarrativeCategory tags chunks built from the visible text of an inline XBRL filing.
const NarrativeCategory = "narrative"

// structural holds lower-cased local names of XBRL elements that are not facts.
var structural = map[string]struct{}{
	"context": {}, "unit": {}, "identifier": {}, "segment": {}, "entity": {},
	"period": {}, "startdate": {}, "enddate": {}, "instant": {}, "measure": {},
	"divide": {}, "unitnumerator": {}, "unitdenominator": {}, "schemaref": {},
	"explicitmember": {}, "typedmember": {},
}

type fact struct {
	prefix     string
	name       string
	contextRef string
	unitRef    string
	value      string
	scale      string
}

type factGroup struct {
	category string
	facts    []fact
}

func (p *Processor) processXBRL(ctx context.Context, path string, inline bool) ([]domain.Chunk, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, parseErr(path, "%v", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, parseErr(path, "empty file")
	}

	facts, err := parseFacts(ctx, bytes.NewReader(data), inline)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		if !inline {
			return nil, parseErr(path, "%v", err)
		}
		// Loose HTML can still carry narrative text worth indexing.
		p.logger.Warn().Err(err).Str("path", path).Msg("inline xbrl facts unreadable")
		facts = nil
	}

	var chunks []domain.Chunk
	for _, g := range groupFacts(facts) {
		for _, piece := range p.window.SplitText(formatFacts(g)) {
			chunks = append(chunks, domain.Chunk{
				Text:         piece.Text,
				Source:       path,
				Category:     g.category,
				DocumentType: domain.DocumentTypeXBRL,
				FactCount:    len(g.facts),
			})
		}
	}
	p.logger.Debug().Str("path", path).Int("facts", len(facts)).Msg("xbrl facts parsed")

	if inline {
		narrative, err := narrativeText(data)
		if err != nil {
			p.logger.Warn().Err(err).Str("path", path).Msg("inline xbrl narrative unreadable")
		}
		for _, piece := range p.window.SplitText(narrative) {
			chunks = append(chunks, domain.Chunk{
				Text:         piece.Text,
				Source:       path,
				Category:     NarrativeCategory,
				DocumentType: domain.DocumentTypeXBRL,
			})
		}
	}

	if len(chunks) == 0 {
		return nil, parseErr(path, "no xbrl facts found")
	}
	return chunks, nil
}

type frame struct {
	name     xml.Name
	attrs    []xml.Attr
	text     strings.Builder
	hasChild bool
}

// parseFacts streams the document and collects leaf elements in prefixed
// namespaces. Inline XBRL facts are ix:nonFraction / ix:nonNumeric elements
// named by their name attribute.
func parseFacts(ctx context.Context, r io.Reader, inline bool) ([]fact, error) {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = charset.NewReaderLabel
	if inline {
		dec.Strict = false
		dec.AutoClose = xml.HTMLAutoClose
		dec.Entity = xml.HTMLEntity
	}

	prefixes := map[string]string{}
	var stack []*frame
	var facts []fact
	for n := 0; ; n++ {
		if n%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			for _, a := range t.Attr {
				if a.Name.Space == "xmlns" {
					prefixes[a.Value] = a.Name.Local
				}
			}
			if len(stack) > 0 {
				stack[len(stack)-1].hasChild = true
			}
			stack = append(stack, &frame{name: t.Name, attrs: t.Attr})
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text.Write(t)
			}
		case xml.EndElement:
			if len(stack) == 0 {
				continue
			}
			f := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if len(stack) > 0 {
				stack[len(stack)-1].text.WriteString(f.text.String())
			}
			if fc, ok := toFact(f, prefixes); ok {
				facts = append(facts, fc)
			}
		}
	}
	return facts, nil
}

func toFact(f *frame, prefixes map[string]string) (fact, bool) {
	prefix := resolvePrefix(f.name.Space, prefixes)
	local := f.name.Local
	var out fact
	var sign, scale string

	if prefix == "ix" || strings.Contains(f.name.Space, "inlineXBRL") {
		lower := strings.ToLower(local)
		if lower != "nonfraction" && lower != "nonnumeric" {
			return out, false
		}
		name := attr(f.attrs, "name")
		p, l, ok := strings.Cut(name, ":")
		if !ok || p == "" || l == "" {
			return out, false
		}
		prefix, local = p, l
		if lower == "nonfraction" {
			// The displayed text is unsigned and unscaled.
			if attr(f.attrs, "sign") == "-" {
				sign = "-"
			}
			if sc := attr(f.attrs, "scale"); sc != "" && sc != "0" {
				scale = sc
			}
		}
	} else {
		if f.hasChild || prefix == "" {
			return out, false
		}
		if _, skip := structural[strings.ToLower(local)]; skip {
			return out, false
		}
	}

	value := clean(f.text.String())
	if value == "" {
		return out, false
	}
	return fact{
		prefix:     prefix,
		name:       prefix + ":" + local,
		contextRef: attr(f.attrs, "contextRef"),
		unitRef:    attr(f.attrs, "unitRef"),
		value:      sign + value,
		scale:      scale,
	}, true
}

// resolvePrefix maps a namespace URI back to the prefix declared for it.
// Undeclared prefixes are left untranslated by the decoder and used as is.
func resolvePrefix(space string, prefixes map[string]string) string {
	if space == "" {
		return ""
	}
	if p, ok := prefixes[space]; ok {
		return p
	}
	if strings.ContainsAny(space, ":/") {
		return ""
	}
	return space
}

func attr(attrs []xml.Attr, local string) string {
	for _, a := range attrs {
		if strings.EqualFold(a.Name.Local, local) {
			return strings.TrimSpace(a.Value)
		}
	}
	return ""
}

// groupFacts groups facts by prefix in first-seen order.
func groupFacts(facts []fact) []factGroup {
	var groups []factGroup
	pos := map[string]int{}
	for _, f := range facts {
		i, ok := pos[f.prefix]
		if !ok {
			i = len(groups)
			pos[f.prefix] = i
			groups = append(groups, factGroup{category: f.prefix})
		}
		groups[i].facts = append(groups[i].facts, f)
	}
	return groups
}

// formatFacts renders one category as label: value lines, fact names sorted.
func formatFacts(g factGroup) string {
	byName := map[string][]fact{}
	var names []string
	for _, f := range g.facts {
		if _, ok := byName[f.name]; !ok {
			names = append(names, f.name)
		}
		byName[f.name] = append(byName[f.name], f)
	}
	sort.Strings(names)

	parts := []string{fmt.Sprintf("Financial Data - %s Category:", strings.ToUpper(g.category))}
	for _, name := range names {
		_, local, _ := strings.Cut(name, ":")
		parts = append(parts, "\n"+humanize(local)+":")
		for _, f := range byName[name] {
			line := "  - Value: " + f.value
			switch {
			case f.unitRef != "" && f.scale != "":
				line += " (" + f.unitRef + ", scale " + f.scale + ")"
			case f.unitRef != "":
				line += " (" + f.unitRef + ")"
			case f.scale != "":
				line += " (scale " + f.scale + ")"
			}
			if f.contextRef != "" {
				line += " [Context: " + f.contextRef + "]"
			}
			parts = append(parts, line)
		}
	}
	return strings.Join(parts, "\n")
}

// humanize splits a CamelCase or snake_case element name into words:
// "NetIncomeLoss" -> "Net Income Loss", "EPSDiluted" -> "EPS Diluted".
func humanize(name string) string {
	r := []rune(strings.ReplaceAll(name, "_", " "))
	var b strings.Builder
	for i, c := range r {
		if i > 0 && unicode.IsUpper(c) && r[i-1] != ' ' {
			prev := r[i-1]
			nextLower := i+1 < len(r) && unicode.IsLower(r[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				b.WriteRune(' ')
			}
		}
		b.WriteRune(c)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
