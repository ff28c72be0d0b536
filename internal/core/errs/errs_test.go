package errs

import (
	"errors"
	"fmt"
	"io"
	"testing"
)

func TestIs_MatchesByKind(t *testing.T) {
	err := New(KindRasterOpen, "open a/b.tif", io.ErrUnexpectedEOF)
	wrapped := fmt.Errorf("sample: %w", err)

	if !errors.Is(wrapped, ErrRasterOpen) {
		t.Fatalf("expected wrapped error to match ErrRasterOpen")
	}
	if errors.Is(wrapped, ErrRasterRead) {
		t.Fatalf("raster open must not match raster read")
	}
	if !errors.Is(wrapped, io.ErrUnexpectedEOF) {
		t.Fatalf("cause must stay reachable through Unwrap")
	}
}

func TestKindOf(t *testing.T) {
	cases := []struct {
		err  error
		want Kind
	}{
		{Newf(KindBadInput, "x=%q", "abc"), KindBadInput},
		{fmt.Errorf("outer: %w", New(KindStoreQuery, "select", nil)), KindStoreQuery},
		{io.EOF, KindUnknown},
		{nil, KindUnknown},
	}
	for _, tc := range cases {
		if got := KindOf(tc.err); got != tc.want {
			t.Errorf("KindOf(%v)=%s want %s", tc.err, got, tc.want)
		}
	}
}

func TestError_Message(t *testing.T) {
	err := New(KindProjectionParse, "parse epsg", errors.New("no authority block"))
	want := "projection_parse: parse epsg: no authority block"
	if err.Error() != want {
		t.Fatalf("Error()=%q want %q", err.Error(), want)
	}
	if got := ErrNoCoverage.Error(); got != "no_coverage" {
		t.Fatalf("sentinel message=%q", got)
	}
}
