package crypto

import (
	"errors"
	"strings"
	"testing"
)

func TestNewFieldCipher(t *testing.T) {
	t.Parallel()

	t.Run("missing key", func(t *testing.T) {
		t.Parallel()

		_, err := NewFieldCipher("")
		if !errors.Is(err, ErrMissingKey) {
			t.Fatalf("expected ErrMissingKey, got %v", err)
		}
	})

	t.Run("invalid key length", func(t *testing.T) {
		t.Parallel()

		_, err := NewFieldCipher("short")
		if !errors.Is(err, ErrInvalidKey) {
			t.Fatalf("expected ErrInvalidKey, got %v", err)
		}
	})
}

func TestSealOpenRoundTrip(t *testing.T) {
	t.Parallel()

	c, err := NewFieldCipher(strings.Repeat("k", 32))
	if err != nil {
		t.Fatalf("failed to build cipher: %v", err)
	}

	binding := []byte("inquiry-1")
	first, err := c.Seal("+1 613 555 0199", binding)
	if err != nil {
		t.Fatalf("seal failed: %v", err)
	}
	second, err := c.Seal("+1 613 555 0199", binding)
	if err != nil {
		t.Fatalf("seal failed: %v", err)
	}
	if first == second {
		t.Fatal("expected distinct ciphertexts for the same plaintext")
	}
	if !strings.HasPrefix(first, sealedPrefix) {
		t.Fatalf("expected sealed prefix, got %q", first)
	}

	opened, err := c.Open(first, binding)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if opened != "+1 613 555 0199" {
		t.Fatalf("unexpected plaintext %q", opened)
	}
}

func TestOpenRejectsWrongBinding(t *testing.T) {
	t.Parallel()

	c, err := NewFieldCipher(strings.Repeat("k", 32))
	if err != nil {
		t.Fatalf("failed to build cipher: %v", err)
	}

	sealed, err := c.Seal("555-0100", []byte("row-a"))
	if err != nil {
		t.Fatalf("seal failed: %v", err)
	}
	if _, err := c.Open(sealed, []byte("row-b")); err == nil {
		t.Fatal("expected error when binding differs")
	}
}

func TestOpenPassesThroughUnsealedValues(t *testing.T) {
	t.Parallel()

	c, err := NewFieldCipher(strings.Repeat("k", 32))
	if err != nil {
		t.Fatalf("failed to build cipher: %v", err)
	}

	got, err := c.Open("555-0100", nil)
	if err != nil || got != "555-0100" {
		t.Fatalf("Open(plain) = %q, %v", got, err)
	}

	empty, err := c.Seal("", nil)
	if err != nil || empty != "" {
		t.Fatalf("Seal(\"\") = %q, %v", empty, err)
	}
}

func TestOpenRejectsTruncatedCiphertext(t *testing.T) {
	t.Parallel()

	c, err := NewFieldCipher(strings.Repeat("k", 32))
	if err != nil {
		t.Fatalf("failed to build cipher: %v", err)
	}

	if _, err := c.Open(sealedPrefix+"AAAA", nil); !errors.Is(err, ErrCiphertextTooShort) {
		t.Fatalf("expected ErrCiphertextTooShort, got %v", err)
	}
}

func TestPlaintextRefusesSealedValues(t *testing.T) {
	t.Parallel()

	if _, err := (Plaintext{}).Open(sealedPrefix+"abc", nil); !errors.Is(err, ErrMissingKey) {
		t.Fatalf("expected ErrMissingKey, got %v", err)
	}
	got, err := (Plaintext{}).Seal("555-0100", nil)
	if err != nil || got != "555-0100" {
		t.Fatalf("Seal = %q, %v", got, err)
	}
}
