package credential

import "testing"

func TestHashAndVerify(t *testing.T) {
	hash, err := Hash("9876543210")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if hash == "9876543210" {
		t.Fatal("hash equals plaintext")
	}

	if !Verify("9876543210", hash) {
		t.Error("Verify rejected the original plaintext")
	}
	if Verify("9876543211", hash) {
		t.Error("Verify accepted a different plaintext")
	}
	if Verify("", hash) {
		t.Error("Verify accepted an empty plaintext")
	}
}

func TestHashEmpty(t *testing.T) {
	if _, err := Hash(""); err == nil {
		t.Error("expected error for empty credential")
	}
}

func TestIsHashed(t *testing.T) {
	hash, err := Hash("secret")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}

	tests := []struct {
		name string
		in   string
		want bool
	}{
		{"real hash", hash, true},
		{"plaintext", "secret", false},
		{"empty", "", false},
		{"dollar prefix but not bcrypt", "$2x$garbage", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsHashed(tt.in); got != tt.want {
				t.Errorf("IsHashed(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestProvisionCopiesHashForward(t *testing.T) {
	hash, err := Hash("9876543210")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}

	// A stored representation must pass through unchanged, not be re-hashed.
	again, err := Provision(hash)
	if err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if again != hash {
		t.Error("Provision re-hashed an already-hashed value")
	}

	// A plaintext must come out hashed.
	fresh, err := Provision("9876543210")
	if err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if fresh == "9876543210" || !Verify("9876543210", fresh) {
		t.Error("Provision did not hash the plaintext")
	}
}
