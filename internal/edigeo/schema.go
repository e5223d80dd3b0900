package edigeo

import (
	"fmt"
	"strings"
)

// AttributeDescriptor is one SCD-declared attribute: its name and its
// declared EDIGEO type code (e.g. "T" text, "R" real, "I" integer).
type AttributeDescriptor struct {
	Name string
	Type string
}

// ObjectKind is one SCD-declared object kind and its attribute set.
type ObjectKind struct {
	Name       string
	Attributes []AttributeDescriptor
}

// Schema is the decoded SCD content: every declared object kind,
// keyed by name (e.g. "PARCELLE_id").
type Schema struct {
	Kinds map[string]ObjectKind
}

// ParseSCD extracts the declared object kinds and their attribute
// descriptors from one SCD file body (C3). SCD shares the same
// RTYSA03-delimited block framing as VEC: an "OBJ" block declares one
// object kind via its RID; a following "ATR" block declares one
// attribute via its own RID and TYP.
func ParseSCD(content []byte) (*Schema, error) {
	schema := &Schema{Kinds: make(map[string]ObjectKind)}

	var current string
	for _, block := range Blocks(content) {
		lines := strings.SplitN(block, "\n", 2)
		if len(lines) == 0 {
			continue
		}
		blockType := strings.TrimSpace(lines[0])
		body := ""
		if len(lines) > 1 {
			body = lines[1]
		}

		switch blockType {
		case "OBJ":
			id := blockID(body)
			if id == "" {
				continue
			}
			current = id
			schema.Kinds[id] = ObjectKind{Name: id}
		case "ATR":
			if current == "" {
				continue
			}
			desc := parseATR(body)
			kind := schema.Kinds[current]
			kind.Attributes = append(kind.Attributes, desc)
			schema.Kinds[current] = kind
		}
	}

	if len(schema.Kinds) == 0 {
		return nil, fmt.Errorf("SCD: no object kinds declared")
	}
	return schema, nil
}

func parseATR(body string) AttributeDescriptor {
	var desc AttributeDescriptor
	sc := NewScanner(strings.NewReader(body))
	for sc.Scan() {
		tok := sc.Token()
		switch tok.Tag {
		case "RID":
			desc.Name = tok.Value
		case "TYP":
			desc.Type = tok.Value
		}
	}
	return desc
}

// wellKnownCRS maps the EDIGEO projection mnemonic found in the GEO
// file's RELSACC field to the EPSG code spec.md §4.3 restricts input
// to: Lambert 93, the four UTM DOM zones, legacy NTF Lambert zones,
// and 4326.
var wellKnownCRS = map[string]int{
	"LAMB93":       2154,
	"LAMBERT93":    2154,
	"LAMB1":        27561,
	"LAMB2":        27562,
	"LAMB3":        27563,
	"LAMB4":        27564,
	"LAMBE":        27572, // Lambert II étendu
	"UTM20W84GUAD": 2971,  // Guadeloupe
	"UTM20W84MART": 2973,  // Martinique
	"UTM22RGFG95":  2972,  // Guyane
	"UTM40RGR92":   2975,  // Réunion
	"WGS84":        4326,
	"RGF93":        4326,
}

// ParseGEO extracts the coordinate reference system declared by one
// GEO file body. The mnemonic lives after a "RELSA..." key, terminated
// by CR/LF, mirroring the flat key:value framing of the legacy parser
// (original_source's geo.rs `RELSA` scan) rather than the RTYSA03
// block framing VEC/SCD use.
func ParseGEO(content []byte) (epsg int, mnemonic string, err error) {
	idx := strings.Index(string(content), "RELSA")
	if idx < 0 {
		return 0, "", fmt.Errorf("GEO: no RELSA projection key found")
	}
	rest := string(content[idx+5:])
	colon := strings.IndexByte(rest, ':')
	if colon < 0 {
		return 0, "", fmt.Errorf("GEO: malformed RELSA key")
	}
	rest = rest[colon+1:]
	end := strings.IndexAny(rest, "\r\n")
	if end >= 0 {
		rest = rest[:end]
	}
	mnemonic = strings.TrimSpace(rest)

	code, ok := wellKnownCRS[strings.ToUpper(mnemonic)]
	if !ok {
		return 0, mnemonic, fmt.Errorf("GEO: unrecognized projection %q", mnemonic)
	}
	return code, mnemonic, nil
}
