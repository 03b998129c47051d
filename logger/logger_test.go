package logger

import "testing"

func TestInit(t *testing.T) {
	old := Log
	t.Cleanup(func() { Log = old })

	if err := Init("debug"); err != nil {
		t.Fatalf("Init should accept debug, got: %v", err)
	}
	if Log == nil {
		t.Fatal("Init should install a logger")
	}
	if err := Init("chatty"); err == nil {
		t.Error("Init should reject an unknown level")
	}
}
