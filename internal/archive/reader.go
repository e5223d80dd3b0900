// Package archive implements C1: streaming decompression and member
// classification for one EDIGEO .tar.bz2 sheet.
package archive

import (
	"archive/tar"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dsnet/compress/bzip2"

	"github.com/edigeo-cadastre/ingest/internal/ingesterrors"
)

// Bundle holds the five role-tagged byte buffers decoded from one
// sheet archive. VEC may contain zero or more members; the archive is
// rejected when THF, SCD or GEO is absent. When a role other than VEC
// appears more than once, the last such member is kept.
type Bundle struct {
	THF []byte
	SCD []byte
	GEO []byte
	QAL []byte
	VEC [][]byte
}

// Read streams path (a .tar.bz2 file) and classifies its members by
// extension, case-insensitively. Extraneous members are ignored.
func Read(path string, r io.Reader) (*Bundle, error) {
	bz, err := bzip2.NewReader(r, nil)
	if err != nil {
		return nil, ingesterrors.Wrap(path, ingesterrors.ErrArchiveIO, fmt.Errorf("bzip2: %w", err))
	}
	defer bz.Close()

	tr := tar.NewReader(bz)
	bundle := &Bundle{}

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, ingesterrors.Wrap(path, ingesterrors.ErrArchiveIO, fmt.Errorf("tar: %w", err))
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}

		data, err := io.ReadAll(tr)
		if err != nil {
			return nil, ingesterrors.Wrap(path, ingesterrors.ErrArchiveIO, fmt.Errorf("reading %s: %w", hdr.Name, err))
		}

		switch strings.ToUpper(strings.TrimPrefix(filepath.Ext(hdr.Name), ".")) {
		case "THF":
			bundle.THF = data
		case "SCD":
			bundle.SCD = data
		case "GEO":
			bundle.GEO = data
		case "QAL":
			bundle.QAL = data
		case "VEC":
			bundle.VEC = append(bundle.VEC, data)
		}
	}

	if bundle.THF == nil || bundle.SCD == nil || bundle.GEO == nil {
		return nil, ingesterrors.Wrap(path, ingesterrors.ErrMissingMember, nil)
	}
	return bundle, nil
}
