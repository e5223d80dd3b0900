// Package ingesterrors defines the semantic error kinds an archive can
// fail with, as sentinel values usable with errors.Is/errors.As.
package ingesterrors

import "errors"

var (
	ErrArchiveIO          = errors.New("archive I/O failure")
	ErrMissingMember      = errors.New("archive missing a required member (THF/SCD/GEO)")
	ErrUnsupportedCRS     = errors.New("GEO declares an unsupported coordinate reference system")
	ErrPrimitiveMissing   = errors.New("feature references an unresolvable primitive")
	ErrGeometryIncomplete = errors.New("face chaining did not close")
	ErrCoercionFailed     = errors.New("value could not be coerced for a non-nullable field")
	ErrReprojectionFailed = errors.New("geometry reprojection failed")
	ErrSinkConflict       = errors.New("unique key violation not covered by ON CONFLICT DO NOTHING")
	ErrConfigInvalid      = errors.New("table configuration is invalid")
	ErrConnectionLost     = errors.New("relational store connection lost")
)

// ArchiveError wraps an error with the archive path it occurred in,
// the unit C1-C9 propagate per-archive rather than aborting the run.
type ArchiveError struct {
	Archive string
	Kind    error
	Err     error
}

func (e *ArchiveError) Error() string {
	if e.Err != nil {
		return e.Archive + ": " + e.Kind.Error() + ": " + e.Err.Error()
	}
	return e.Archive + ": " + e.Kind.Error()
}

func (e *ArchiveError) Unwrap() error {
	return e.Kind
}

// Wrap attaches an archive path to a sentinel error kind.
func Wrap(archive string, kind error, cause error) *ArchiveError {
	return &ArchiveError{Archive: archive, Kind: kind, Err: cause}
}

// kinds lists every sentinel Classify checks against, in the order
// spec.md §7 enumerates them.
var kinds = []error{
	ErrArchiveIO,
	ErrMissingMember,
	ErrUnsupportedCRS,
	ErrPrimitiveMissing,
	ErrGeometryIncomplete,
	ErrCoercionFailed,
	ErrReprojectionFailed,
	ErrSinkConflict,
	ErrConfigInvalid,
	ErrConnectionLost,
}

// Classify recovers the sentinel kind behind an arbitrarily wrapped
// error, so a caller several layers above where the error was produced
// (e.g. the orchestrator logging one line per failed archive) can
// report which of the ten kinds occurred without threading the
// archive path through every intermediate return. Returns nil if err
// doesn't wrap any known kind.
func Classify(err error) error {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

