package conv

import (
	"errors"
	"net/url"
	"strings"
)

// pattern is a compiled path pattern: the controller base plus decoded
// name segments, grouped into slash-separated units. A unit holds more
// than one part when segments are extension-joined ("/:name.json").
type pattern struct {
	base     string
	units    []patternUnit
	captures int
	pathname string
}

type patternUnit struct {
	parts []segment
}

func compilePattern(base string, segs []segment) (pattern, error) {
	p := pattern{base: strings.TrimSuffix(base, "/")}

	for _, seg := range segs {
		if seg.ext {
			// An extension before any segment joins to the base itself:
			// "GET__json" on "/export" serves /export.json. Only literals
			// can extend the base.
			if len(p.units) == 0 {
				if seg.capture {
					return pattern{}, errors.New(`cannot join a capture to the base path with "."`)
				}
				p.base += "." + seg.value
				continue
			}
			if seg.capture {
				p.captures++
			}
			last := &p.units[len(p.units)-1]
			last.parts = append(last.parts, seg)
			continue
		}
		if seg.capture {
			p.captures++
		}
		p.units = append(p.units, patternUnit{parts: []segment{seg}})
	}

	p.pathname = p.render()
	return p, nil
}

// render builds the canonical pathname, with captures shown as ":name".
func (p pattern) render() string {
	var b strings.Builder
	b.WriteString(p.base)

	for _, unit := range p.units {
		b.WriteString("/")
		for i, part := range unit.parts {
			if i > 0 {
				b.WriteString(".")
			}
			if part.capture {
				b.WriteString(":")
			}
			b.WriteString(part.value)
		}
	}

	if b.Len() == 0 {
		return "/"
	}
	return b.String()
}

// match tests a request path against the pattern and returns the named
// capture values. The base must prefix the path on a segment boundary.
func (p pattern) match(path string) (map[string]string, bool) {
	if !strings.HasPrefix(path, p.base) {
		return nil, false
	}
	// The base must end on a segment boundary: "/users" matches
	// "/users/1" but never "/usersX".
	if len(path) > len(p.base) && path[len(p.base)] != '/' {
		return nil, false
	}

	rest := strings.Trim(path[len(p.base):], "/")

	if rest == "" {
		if len(p.units) == 0 {
			return map[string]string{}, true
		}
		return nil, false
	}

	parts := strings.Split(rest, "/")
	if len(parts) != len(p.units) {
		return nil, false
	}

	captures := map[string]string{}
	for i, unit := range p.units {
		if !unit.match(parts[i], captures) {
			return nil, false
		}
	}
	return captures, true
}

func (u patternUnit) match(part string, captures map[string]string) bool {
	var pieces []string
	if len(u.parts) == 1 {
		pieces = []string{part}
	} else {
		pieces = strings.Split(part, ".")
		if len(pieces) != len(u.parts) {
			return false
		}
	}

	for i, seg := range u.parts {
		piece := pieces[i]
		if seg.capture {
			if piece == "" {
				return false
			}
			if unescaped, err := url.PathUnescape(piece); err == nil {
				piece = unescaped
			}
			captures[seg.value] = piece
			continue
		}
		if seg.value != piece {
			return false
		}
	}
	return true
}
