package security

import "testing"

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	svc, err := NewEncryptionService("0123456789abcdef0123456789abcdef")
	if err != nil {
		t.Fatal(err)
	}

	ct, err := svc.Encrypt(`{"user_id":"551","messages":[]}`)
	if err != nil {
		t.Fatal(err)
	}
	if ct == `{"user_id":"551","messages":[]}` {
		t.Fatal("ciphertext equals plaintext")
	}

	pt, err := svc.Decrypt(ct)
	if err != nil {
		t.Fatal(err)
	}
	if pt != `{"user_id":"551","messages":[]}` {
		t.Fatalf("round trip mismatch: %q", pt)
	}
}

func TestNewEncryptionService_KeyLength(t *testing.T) {
	if _, err := NewEncryptionService("short"); err == nil {
		t.Fatal("expected error for invalid key length")
	}
	for _, key := range []string{"0123456789abcdef", "0123456789abcdef01234567", "0123456789abcdef0123456789abcdef"} {
		if _, err := NewEncryptionService(key); err != nil {
			t.Fatalf("key length %d should be valid: %v", len(key), err)
		}
	}
}

func TestDecrypt_Garbage(t *testing.T) {
	svc, err := NewEncryptionService("0123456789abcdef")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Decrypt("not-base64!!"); err == nil {
		t.Fatal("expected error for invalid base64")
	}
	if _, err := svc.Decrypt("YWJj"); err == nil {
		t.Fatal("expected error for truncated ciphertext")
	}
}
