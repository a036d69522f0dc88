package envelope

import (
	"testing"
	"time"
)

func TestRoundTrip(t *testing.T) {
	exp := time.Now().Add(time.Minute).Truncate(0)
	b := Encode([]byte("payload"), exp)

	payload, got, err := Decode(b)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if string(payload) != "payload" {
		t.Fatalf("payload = %q", payload)
	}
	if !got.Equal(exp) {
		t.Fatalf("expiresAt = %v, want %v", got, exp)
	}
}

func TestNoExpiry(t *testing.T) {
	b := Encode([]byte("x"), time.Time{})
	_, exp, err := Decode(b)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !exp.IsZero() {
		t.Fatalf("expected zero expiry, got %v", exp)
	}
	if Expired(exp, time.Now().Add(100*365*24*time.Hour)) {
		t.Fatal("zero expiry must never expire")
	}
}

func TestDecodeRejectsTrailing(t *testing.T) {
	b := Encode([]byte("x"), time.Time{})
	b = append(b, 0xDE, 0xAD)
	if _, _, err := Decode(b); err != ErrCorrupt {
		t.Fatalf("expected ErrCorrupt on trailing bytes, got %v", err)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	for _, b := range [][]byte{nil, {}, []byte("short"), []byte("not-a-frame-at-all")} {
		if _, _, err := Decode(b); err != ErrCorrupt {
			t.Fatalf("expected ErrCorrupt for %q, got %v", b, err)
		}
	}
}

func TestDecodeRejectsBadVersion(t *testing.T) {
	b := Encode([]byte("x"), time.Time{})
	b[4] = 99
	if _, _, err := Decode(b); err != ErrCorrupt {
		t.Fatalf("expected ErrCorrupt on bad version, got %v", err)
	}
}

func TestExpired(t *testing.T) {
	now := time.Now()
	if Expired(now.Add(time.Second), now) {
		t.Fatal("future expiry reported as expired")
	}
	if !Expired(now.Add(-time.Second), now) {
		t.Fatal("past expiry not reported as expired")
	}
}
