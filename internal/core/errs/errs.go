// Package errs defines the failure kinds shared by ingestion and lookup.
package errs

import (
	"errors"
	"fmt"
)

type Kind uint8

const (
	KindUnknown Kind = iota
	KindProjectionParse
	KindSpatialRef
	KindTransformBuild
	KindRasterOpen
	KindRasterRead
	KindStoreConnection
	KindStoreQuery
	KindNoCoverage
	KindBadInput
)

var kindNames = map[Kind]string{
	KindUnknown:         "unknown",
	KindProjectionParse: "projection_parse",
	KindSpatialRef:      "spatial_ref",
	KindTransformBuild:  "transform_build",
	KindRasterOpen:      "raster_open",
	KindRasterRead:      "raster_read",
	KindStoreConnection: "store_connection",
	KindStoreQuery:      "store_query",
	KindNoCoverage:      "no_coverage",
	KindBadInput:        "bad_input",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// sentinels for errors.Is
var (
	ErrProjectionParse = &Error{Kind: KindProjectionParse}
	ErrSpatialRef      = &Error{Kind: KindSpatialRef}
	ErrTransformBuild  = &Error{Kind: KindTransformBuild}
	ErrRasterOpen      = &Error{Kind: KindRasterOpen}
	ErrRasterRead      = &Error{Kind: KindRasterRead}
	ErrStoreConnection = &Error{Kind: KindStoreConnection}
	ErrStoreQuery      = &Error{Kind: KindStoreQuery}
	ErrNoCoverage      = &Error{Kind: KindNoCoverage}
	ErrBadInput        = &Error{Kind: KindBadInput}
)

// Error carries a Kind, the operation that failed and the underlying cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so sentinels compare by kind only.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

func New(k Kind, op string, err error) error {
	return &Error{Kind: k, Op: op, Err: err}
}

func Newf(k Kind, format string, args ...any) error {
	return &Error{Kind: k, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
