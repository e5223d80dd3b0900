package edigeo

import "strings"

// Reference is a cross-reference to another primitive or feature:
// "SID;GID;RTY;RID" — schema id, group id, referenced record type,
// referenced record id.
type Reference struct {
	SID, GID, RTY, RID string
}

// ParseReference parses the SID;GID;RTY;RID reference format.
func ParseReference(value string) Reference {
	parts := strings.SplitN(value, ";", 4)
	var ref Reference
	if len(parts) > 0 {
		ref.SID = parts[0]
	}
	if len(parts) > 1 {
		ref.GID = parts[1]
	}
	if len(parts) > 2 {
		ref.RTY = parts[2]
	}
	if len(parts) > 3 {
		ref.RID = parts[3]
	}
	return ref
}

// ParseCoords parses the "+X;+Y;" coordinate format (the trailing
// semicolon is optional).
func ParseCoords(value string) (x, y float64, ok bool) {
	semi := strings.IndexByte(value, ';')
	if semi < 0 {
		return 0, 0, false
	}
	xStr := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(value[:semi]), "+"))
	rest := value[semi+1:]
	yEnd := strings.IndexByte(rest, ';')
	if yEnd < 0 {
		yEnd = len(rest)
	}
	yStr := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(rest[:yEnd]), "+"))

	xv, err := parseFloat(xStr)
	if err != nil {
		return 0, 0, false
	}
	yv, err := parseFloat(yStr)
	if err != nil {
		return 0, 0, false
	}
	return xv, yv, true
}
