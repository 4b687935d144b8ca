package idgen

import (
	"testing"

	"github.com/google/uuid"
)

func TestNewIDIsUniqueV4(t *testing.T) {
	g := Generator{}
	a, b := g.NewID(), g.NewID()
	if a == b {
		t.Fatalf("expected distinct ids")
	}
	parsed, err := uuid.Parse(a)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.Version() != 4 {
		t.Fatalf("expected v4, got %d", parsed.Version())
	}
}
