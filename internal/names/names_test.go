package names_test

import (
	"testing"

	"dexlower/internal/names"
)

func TestPackage(t *testing.T) {
	tests := []struct{ in, want string }{
		{"", ""},
		{"Demo", "demo"},
		{"Demo.Sub.Deep", "demo/sub/deep"},
	}
	for _, tt := range tests {
		if got := names.Package(tt.in); got != tt.want {
			t.Errorf("Package(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIdentifier(t *testing.T) {
	if got := names.Class("List`1"); got != "List_1" {
		t.Fatalf("Class = %q", got)
	}
	// "e" + combining acute composes to U+00E9.
	if got := names.Identifier("Cafe\u0301"); got != "Caf\u00e9" {
		t.Fatalf("Identifier did not normalise: %q", got)
	}
	if names.Method(".ctor") != names.Init || names.Method(".cctor") != names.Clinit {
		t.Fatal("reserved method names")
	}
}

func TestUnique(t *testing.T) {
	set := names.Set{}
	got := []string{set.Claim("value"), set.Claim("value"), set.Claim("value"), set.Claim("other")}
	want := []string{"value", "value0", "value1", "other"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Claim sequence = %v, want %v", got, want)
		}
	}
}

func TestFramework(t *testing.T) {
	if n, ok := names.Framework("System.Object"); !ok || n != "java/lang/Object" {
		t.Fatalf("Framework(System.Object) = %q, %v", n, ok)
	}
	if _, ok := names.Framework("Demo.Point"); ok {
		t.Fatal("user type resolved as framework type")
	}
}
