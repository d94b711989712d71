// Package ixbrl reads numeric facts out of inline-XBRL filing documents and
// shapes them like companyfacts rows.
package ixbrl

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"findash/internal/facts"
)

// Context is an xbrli:context. Dimensional contexts carry a segment and are
// never attached to a fact record.
type Context struct {
	ID          string
	Start       string
	End         string
	Instant     string
	Dimensional bool
}

// PeriodEnd returns the end date or the instant.
func (c Context) PeriodEnd() string {
	if c.End != "" {
		return c.End
	}
	return c.Instant
}

// Fact is one ix:nonFraction element.
type Fact struct {
	Name       string
	ContextRef string
	UnitRef    string
	Value      float64
}

// Meta is the filing identity carried by the cover page dei facts.
type Meta struct {
	Form         string
	FiscalPeriod string
	FiscalYear   int
	Accession    string
}

// Document is a parsed inline-XBRL filing.
type Document struct {
	Contexts map[string]Context
	Units    map[string]string
	Facts    []Fact
	Meta     Meta
}

// Parse reads every context, unit and numeric fact from r.
func Parse(r io.Reader) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse inline xbrl: %w", err)
	}

	out := &Document{
		Contexts: make(map[string]Context),
		Units:    make(map[string]string),
	}
	seen := make(map[string]bool)

	doc.Find("*").Each(func(_ int, s *goquery.Selection) {
		switch localName(goquery.NodeName(s)) {
		case "context":
			if c, ok := parseContext(s); ok {
				out.Contexts[c.ID] = c
			}
		case "unit":
			if id, ok := s.Attr("id"); ok {
				out.Units[id] = parseUnit(s)
			}
		case "nonnumeric":
			out.Meta.apply(s)
		case "nonfraction":
			f, ok := parseFact(s)
			if !ok {
				return
			}
			key := f.Name + "|" + f.ContextRef + "|" + f.UnitRef
			if seen[key] {
				return
			}
			seen[key] = true
			out.Facts = append(out.Facts, f)
		}
	})

	return out, nil
}

func localName(tag string) string {
	if i := strings.LastIndexByte(tag, ':'); i >= 0 {
		return tag[i+1:]
	}
	return tag
}

func childText(s *goquery.Selection, name string) string {
	text := ""
	s.Find("*").EachWithBreak(func(_ int, c *goquery.Selection) bool {
		if localName(goquery.NodeName(c)) == name {
			text = strings.TrimSpace(c.Text())
			return false
		}
		return true
	})
	return text
}

func parseContext(s *goquery.Selection) (Context, bool) {
	id, ok := s.Attr("id")
	if !ok || id == "" {
		return Context{}, false
	}

	c := Context{
		ID:      id,
		Start:   childText(s, "startdate"),
		End:     childText(s, "enddate"),
		Instant: childText(s, "instant"),
	}
	s.Find("*").Each(func(_ int, m *goquery.Selection) {
		switch localName(goquery.NodeName(m)) {
		case "explicitmember", "typedmember":
			c.Dimensional = true
		}
	})
	return c, true
}

// parseUnit renders a unit the way companyfacts keys it: USD, shares,
// USD/shares.
func parseUnit(s *goquery.Selection) string {
	var num, den string
	s.Find("*").Each(func(_ int, c *goquery.Selection) {
		switch localName(goquery.NodeName(c)) {
		case "unitnumerator":
			num = childText(c, "measure")
		case "unitdenominator":
			den = childText(c, "measure")
		}
	})
	if num != "" && den != "" {
		return localName(num) + "/" + localName(den)
	}
	return localName(childText(s, "measure"))
}

func parseFact(s *goquery.Selection) (Fact, bool) {
	if nilAttr, _ := s.Attr("xsi:nil"); nilAttr == "true" {
		return Fact{}, false
	}

	name, _ := s.Attr("name")
	ctx, _ := s.Attr("contextref")
	if !strings.Contains(name, ":") || ctx == "" {
		return Fact{}, false
	}
	unit, _ := s.Attr("unitref")
	format, _ := s.Attr("format")
	scale, _ := s.Attr("scale")
	sign, _ := s.Attr("sign")

	v, ok := parseNumber(s.Text(), format, scale, sign)
	if !ok {
		return Fact{}, false
	}
	return Fact{Name: name, ContextRef: ctx, UnitRef: unit, Value: v}, true
}

// parseNumber applies the ixt transformation named by format, then scale and
// sign.
func parseNumber(text, format, scale, sign string) (float64, bool) {
	text = strings.TrimSpace(text)
	format = strings.ToLower(format)

	var v float64
	switch {
	case strings.Contains(format, "zerodash"), strings.Contains(format, "fixed-zero"),
		text == "-", text == "—", text == "–":
		v = 0
	default:
		if strings.Contains(format, "numcommadecimal") || strings.Contains(format, "num-comma-decimal") {
			text = strings.ReplaceAll(text, ".", "")
			text = strings.ReplaceAll(text, ",", ".")
		}
		text = strings.NewReplacer(",", "", " ", "", "\u00a0", "", "$", "").Replace(text)
		n, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return 0, false
		}
		v = n
	}

	if scale != "" {
		exp, err := strconv.Atoi(scale)
		if err != nil {
			return 0, false
		}
		v *= math.Pow10(exp)
	}
	if sign == "-" {
		v = -v
	}
	return v, true
}

func (m *Meta) apply(s *goquery.Selection) {
	name, _ := s.Attr("name")
	text := strings.TrimSpace(s.Text())
	switch name {
	case "dei:DocumentType":
		m.Form = text
	case "dei:DocumentFiscalPeriodFocus":
		m.FiscalPeriod = strings.ToUpper(text)
	case "dei:DocumentFiscalYearFocus":
		if fy, err := strconv.Atoi(text); err == nil {
			m.FiscalYear = fy
		}
	}
}

// Records converts the non-dimensional facts into companyfacts-shaped rows
// tagged with taxonomy, concept and unit.
func (d *Document) Records() []facts.RawRecord {
	out := make([]facts.RawRecord, 0, len(d.Facts))
	for _, f := range d.Facts {
		c, ok := d.Contexts[f.ContextRef]
		if !ok || c.Dimensional || c.PeriodEnd() == "" {
			continue
		}
		tax, concept, _ := strings.Cut(f.Name, ":")
		unit := d.Units[f.UnitRef]
		if unit == "" {
			continue
		}

		r := facts.RawRecord{
			"taxonomy": tax,
			"concept":  concept,
			"unit":     unit,
			"val":      f.Value,
			"end":      c.PeriodEnd(),
		}
		if c.Start != "" {
			r["start"] = c.Start
		}
		if d.Meta.Form != "" {
			r["form"] = d.Meta.Form
		}
		if d.Meta.FiscalPeriod != "" {
			r["fp"] = d.Meta.FiscalPeriod
		}
		if d.Meta.FiscalYear != 0 {
			r["fy"] = d.Meta.FiscalYear
		}
		if d.Meta.Accession != "" {
			r["accn"] = d.Meta.Accession
		}
		out = append(out, r)
	}
	return out
}
