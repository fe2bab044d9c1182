package script

import "testing"

func TestResolveReturnsDeclaredAddress(t *testing.T) {
	r, err := New(`function malloc() { return 0x1000; }`)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	addr, ok := r.Resolve("malloc")
	if !ok {
		t.Fatal("Resolve should find the declared function")
	}
	if addr != 0x1000 {
		t.Errorf("addr = %#x, want 0x1000", addr)
	}
}

func TestResolveDeclinesOnUndefinedOrNull(t *testing.T) {
	r, err := New(`
		function undef() { return undefined; }
		function nul() { return null; }
	`)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := r.Resolve("undef"); ok {
		t.Error("Resolve should decline when the function returns undefined")
	}
	if _, ok := r.Resolve("nul"); ok {
		t.Error("Resolve should decline when the function returns null")
	}
}

func TestResolveMissingFunctionDeclines(t *testing.T) {
	r, err := New(`function onlyThis() { return 1; }`)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := r.Resolve("notDefined"); ok {
		t.Error("Resolve should decline for a name with no matching top-level function")
	}
}

func TestResolveNonFunctionValueDeclines(t *testing.T) {
	r, err := New(`var notAFunction = 42;`)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := r.Resolve("notAFunction"); ok {
		t.Error("Resolve should decline when the top-level binding isn't a function")
	}
}

func TestNewReturnsErrorOnScriptFailure(t *testing.T) {
	if _, err := New(`this is not valid javascript {{{`); err == nil {
		t.Error("New should fail to compile an invalid script")
	}
}

func TestMustNewPanicsOnScriptError(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("MustNew should panic on a script error")
		}
	}()
	MustNew(`this is not valid javascript {{{`)
}
