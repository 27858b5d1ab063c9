package errors

import (
	"testing"
)

func TestEntryErrorUnwrap(t *testing.T) {
	err := &EntryError{Name: "bad.bin", Method: 5, Err: ErrUnsupportedMethod}
	if !Is(err, ErrUnsupportedMethod) {
		t.Error("EntryError should unwrap to its underlying error")
	}
	want := `archive entry "bad.bin": unsupported compression method`
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestMultipartErrorDefaultsToSentinel(t *testing.T) {
	err := &MultipartError{Stage: "filename"}
	if !Is(err, ErrMalformedMultipart) {
		t.Error("MultipartError without an underlying error should unwrap to ErrMalformedMultipart")
	}
}

func TestIOErrorDefaultsToSentinel(t *testing.T) {
	err := &IOError{Operation: "write", Path: "/tmp/x"}
	if !Is(err, ErrPersistence) {
		t.Error("IOError without an underlying error should unwrap to ErrPersistence")
	}
}

func TestWrapPreservesSentinel(t *testing.T) {
	err := Wrap(ErrDecompression, "entry %d", 3)
	if !Is(err, ErrDecompression) {
		t.Error("Wrap should preserve the wrapped sentinel")
	}
	if err.Error() != "entry 3: decompression failed" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(nil, "context") != nil {
		t.Error("Wrap(nil) should return nil")
	}
}

func TestAs(t *testing.T) {
	var target *EntryError
	err := Wrap(&EntryError{Name: "x.txt", Err: ErrDecompression}, "outer")
	if !As(err, &target) {
		t.Fatal("As should find the EntryError in the chain")
	}
	if target.Name != "x.txt" {
		t.Errorf("target.Name = %q", target.Name)
	}
}
