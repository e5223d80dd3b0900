package edigeo

import "strings"

// ParseVEC decodes one VEC file body into the primitive store,
// filling Nodes/Arcs/Faces/Features and resolving the FEA -> primitive
// associations carried by REL-kind LNK blocks.
//
// Block layout: each block begins with its type on the first line
// (PNO/PAR/PFE/FEA/LNK), carries its identifier on an RID-tagged line,
// and a body of tag:value lines consumed with the C2 Scanner.
func ParseVEC(content []byte, store *Store) error {
	var links []link

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

		id := blockID(body)
		if id == "" {
			continue
		}

		switch blockType {
		case "PNO":
			if n := parsePNO(body, id); n != nil {
				store.Nodes[id] = n
			}
		case "PAR":
			if a := parsePAR(body, id); a != nil {
				store.Arcs[id] = a
			}
		case "PFE":
			store.Faces[id] = &Face{ID: id}
		case "FEA":
			store.Features[id] = parseFEA(body, id)
		case "LNK":
			links = append(links, parseLNK(body, id))
		}
	}

	associateArcsToFaces(links, store)
	resolveFeatureGeometryRefs(links, store)
	return nil
}

// link is the decoded form of one LNK block: its own SCP reference
// (kind of relation, e.g. RCO_FAC, RCO_SUR, REL) and the set of
// primitives/features it ties together (FTP references).
type link struct {
	ID  string
	SCP Reference
	FTP []Reference
}

func blockID(body string) string {
	sc := NewScanner(strings.NewReader(body))
	for sc.Scan() {
		tok := sc.Token()
		if tok.Tag == "RID" {
			return tok.Value
		}
	}
	return ""
}

func parsePNO(body, id string) *Node {
	n := &Node{ID: id}
	sc := NewScanner(strings.NewReader(body))
	for sc.Scan() {
		tok := sc.Token()
		if tok.Tag == "COR" {
			if x, y, ok := ParseCoords(tok.Value); ok {
				n.X, n.Y = x, y
			}
		}
	}
	return n
}

func parsePAR(body, id string) *Arc {
	a := &Arc{ID: id}
	sc := NewScanner(strings.NewReader(body))
	for sc.Scan() {
		tok := sc.Token()
		if tok.Tag == "COR" {
			if x, y, ok := ParseCoords(tok.Value); ok {
				a.Coords = append(a.Coords, [2]float64{x, y})
			}
		}
	}
	return a
}

func parseFEA(body, id string) *RawFeature {
	f := &RawFeature{ID: id, Attributes: make(map[string]string)}
	var pendingAttr string

	sc := NewScanner(strings.NewReader(body))
	for sc.Scan() {
		tok := sc.Token()
		switch tok.Tag {
		case "SCP":
			f.Kind = ParseReference(tok.Value).RID
		case "ATP":
			// ATPCP references the attribute's own kind block, whose RID
			// is conventionally "<NAME>_id"; the attribute name is NAME.
			ref := ParseReference(tok.Value)
			pendingAttr = strings.TrimSuffix(ref.RID, "_id")
		case "ATV":
			if pendingAttr != "" {
				f.Attributes[pendingAttr] = tok.Value
				pendingAttr = ""
			}
		case "QAP":
			f.QualityRef = ParseReference(tok.Value).RID
		}
	}
	return f
}

func parseLNK(body, id string) link {
	l := link{ID: id}
	sc := NewScanner(strings.NewReader(body))
	for sc.Scan() {
		tok := sc.Token()
		switch tok.Tag {
		case "SCP":
			l.SCP = ParseReference(tok.Value)
		case "FTP":
			l.FTP = append(l.FTP, ParseReference(tok.Value))
		}
	}
	return l
}

func refsOfType(refs []Reference, rty string) []Reference {
	var out []Reference
	for _, r := range refs {
		if r.RTY == rty {
			out = append(out, r)
		}
	}
	return out
}

// associateArcsToFaces wires PFE faces to their boundary arcs via the
// RCO_FAC composition links.
func associateArcsToFaces(links []link, store *Store) {
	for _, l := range links {
		if !strings.Contains(l.SCP.RID, "RCO_FAC") {
			continue
		}
		arcRefs := refsOfType(l.FTP, "PAR")
		faceRefs := refsOfType(l.FTP, "PFE")
		if len(arcRefs) == 0 || len(faceRefs) == 0 {
			continue
		}
		face, ok := store.Faces[faceRefs[0].RID]
		if !ok {
			continue
		}
		for _, ar := range arcRefs {
			if _, ok := store.Arcs[ar.RID]; ok {
				face.Arcs = append(face.Arcs, SignedArcRef{ArcID: ar.RID})
			}
		}
	}
}

// FeatureGeomRefs records which primitives (by kind) back one feature's
// geometry, resolved from the REL-kind LNK blocks.
type FeatureGeomRefs struct {
	PFE []string
	PAR []string
	PNO []string
}

func resolveFeatureGeometryRefs(links []link, store *Store) {
	for _, l := range links {
		if l.SCP.RTY != "REL" {
			continue
		}
		feaRefs := refsOfType(l.FTP, "FEA")
		primRefs := len(refsOfType(l.FTP, "PFE")) + len(refsOfType(l.FTP, "PAR")) + len(refsOfType(l.FTP, "PNO"))

		// A REL link tying exactly two FEA references together, with no
		// geometry primitive of its own, is a feature-to-feature
		// relation edge (e.g. a parcel to the street number it carries)
		// rather than a geometry-assignment link.
		if len(feaRefs) == 2 && primRefs == 0 {
			store.Links = append(store.Links, FeatureLink{
				ID:       l.ID,
				Features: []string{feaRefs[0].RID, feaRefs[1].RID},
			})
			continue
		}

		if len(feaRefs) == 0 {
			continue
		}
		feature, ok := store.Features[feaRefs[0].RID]
		if !ok {
			continue
		}
		for _, r := range l.FTP {
			switch r.RTY {
			case "PFE":
				feature.GeomRefs.PFE = append(feature.GeomRefs.PFE, r.RID)
			case "PAR":
				feature.GeomRefs.PAR = append(feature.GeomRefs.PAR, r.RID)
			case "PNO":
				feature.GeomRefs.PNO = append(feature.GeomRefs.PNO, r.RID)
			}
		}
	}
}
