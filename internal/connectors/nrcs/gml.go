package nrcs

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"github.com/paulmach/orb"

	"github.com/openhydrology/hydroprep-cli/internal/core/domain"
)

// Attribute elements copied from each GML feature onto the domain feature.
var mapUnitProperties = []string{"mukey", "musym", "areasymbol", "nationalmusym"}

// ParseMapUnitFeatures parses a WFS GetFeature GML response (GML2 or GML3)
// into map-unit polygon features. A service exception document is surfaced
// as an error rather than an empty result.
func ParseMapUnitFeatures(data []byte) ([]domain.Feature, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("parse GML: %w", err)
	}
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("parse GML: empty document")
	}

	if msg, ok := exceptionText(root); ok {
		return nil, &APIError{StatusCode: 200, Message: msg}
	}

	var features []domain.Feature
	for _, member := range findAll(root, "featureMember", "member") {
		featureEl := firstChildElement(member)
		if featureEl == nil {
			continue
		}

		props := make(map[string]any)
		for _, key := range mapUnitProperties {
			if el := findFirst(featureEl, key); el != nil {
				props[key] = strings.TrimSpace(el.Text())
			}
		}

		geom, err := parseGeometry(featureEl)
		if err != nil {
			return nil, fmt.Errorf("feature %v: %w", props[domain.MapUnitKeyProperty], err)
		}
		if geom == nil {
			continue
		}
		features = append(features, domain.Feature{Geometry: geom, Properties: props})
	}
	return features, nil
}

// exceptionText detects OGC service exception documents.
func exceptionText(root *etree.Element) (string, bool) {
	if root.Tag != "ServiceExceptionReport" && root.Tag != "ExceptionReport" {
		return "", false
	}
	for _, tag := range []string{"ServiceException", "ExceptionText", "Exception"} {
		if el := findFirst(root, tag); el != nil {
			return strings.TrimSpace(el.Text()), true
		}
	}
	return "service exception", true
}

// parseGeometry collects every gml:Polygon under the feature element into a
// Polygon or MultiPolygon.
func parseGeometry(featureEl *etree.Element) (orb.Geometry, error) {
	polyEls := findAll(featureEl, "Polygon")
	if len(polyEls) == 0 {
		return nil, nil
	}

	var polys orb.MultiPolygon
	for _, polyEl := range polyEls {
		poly, err := parsePolygon(polyEl)
		if err != nil {
			return nil, err
		}
		if len(poly) > 0 {
			polys = append(polys, poly)
		}
	}
	switch len(polys) {
	case 0:
		return nil, nil
	case 1:
		return polys[0], nil
	default:
		return polys, nil
	}
}

func parsePolygon(polyEl *etree.Element) (orb.Polygon, error) {
	swap := swapAxisOrder(polyEl)

	var poly orb.Polygon
	for _, ringEl := range findAll(polyEl, "LinearRing") {
		ring, err := parseRing(ringEl, swap)
		if err != nil {
			return nil, err
		}
		if len(ring) >= 4 {
			poly = append(poly, ring)
		}
	}
	return poly, nil
}

func parseRing(ringEl *etree.Element, swap bool) (orb.Ring, error) {
	var ring orb.Ring

	if posList := findFirst(ringEl, "posList"); posList != nil {
		dim := 2
		if v := posList.SelectAttrValue("srsDimension", ""); v != "" {
			if d, err := strconv.Atoi(v); err == nil && d >= 2 {
				dim = d
			}
		}
		fields := strings.Fields(posList.Text())
		if len(fields)%dim != 0 {
			return nil, fmt.Errorf("posList length %d not divisible by dimension %d", len(fields), dim)
		}
		for i := 0; i+dim <= len(fields); i += dim {
			x, err1 := strconv.ParseFloat(fields[i], 64)
			y, err2 := strconv.ParseFloat(fields[i+1], 64)
			if err1 != nil || err2 != nil {
				return nil, fmt.Errorf("malformed posList coordinate %q %q", fields[i], fields[i+1])
			}
			if swap {
				x, y = y, x
			}
			ring = append(ring, orb.Point{x, y})
		}
	} else if coords := findFirst(ringEl, "coordinates"); coords != nil {
		// GML2 style: "x,y x,y ..."
		for _, pair := range strings.Fields(coords.Text()) {
			parts := strings.Split(pair, ",")
			if len(parts) < 2 {
				return nil, fmt.Errorf("malformed coordinate pair %q", pair)
			}
			x, err1 := strconv.ParseFloat(parts[0], 64)
			y, err2 := strconv.ParseFloat(parts[1], 64)
			if err1 != nil || err2 != nil {
				return nil, fmt.Errorf("malformed coordinate pair %q", pair)
			}
			if swap {
				x, y = y, x
			}
			ring = append(ring, orb.Point{x, y})
		}
	} else {
		return nil, fmt.Errorf("linear ring without posList or coordinates")
	}

	// Close the ring if the source left it open.
	if len(ring) >= 3 && ring[0] != ring[len(ring)-1] {
		ring = append(ring, ring[0])
	}
	return ring, nil
}

// swapAxisOrder reports whether coordinates arrive as lat/lon. URN-style
// CRS identifiers use the authority's axis order (latitude first for
// EPSG:4326); the legacy "EPSG:4326" form means lon/lat.
func swapAxisOrder(el *etree.Element) bool {
	for cur := el; cur != nil; cur = cur.Parent() {
		if srs := cur.SelectAttrValue("srsName", ""); srs != "" {
			return strings.HasPrefix(strings.ToLower(srs), "urn:")
		}
	}
	return false
}

// firstChildElement returns the first child element, or nil.
func firstChildElement(el *etree.Element) *etree.Element {
	children := el.ChildElements()
	if len(children) == 0 {
		return nil
	}
	return children[0]
}

// findFirst walks the subtree in document order and returns the first
// element whose local tag matches. Namespace prefixes vary across servers,
// so matching ignores them.
func findFirst(el *etree.Element, tag string) *etree.Element {
	for _, child := range el.ChildElements() {
		if strings.EqualFold(child.Tag, tag) {
			return child
		}
		if found := findFirst(child, tag); found != nil {
			return found
		}
	}
	return nil
}

// findAll collects every descendant element whose local tag matches one of
// the given names, in document order. Matched subtrees are not descended
// into again.
func findAll(el *etree.Element, tags ...string) []*etree.Element {
	var out []*etree.Element
	var walk func(*etree.Element)
	walk = func(cur *etree.Element) {
		for _, child := range cur.ChildElements() {
			matched := false
			for _, tag := range tags {
				if strings.EqualFold(child.Tag, tag) {
					out = append(out, child)
					matched = true
					break
				}
			}
			if !matched {
				walk(child)
			}
		}
	}
	walk(el)
	return out
}
