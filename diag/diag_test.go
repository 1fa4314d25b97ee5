package diag

import "testing"

func TestCollect(t *testing.T) {
	got := Collect(func() {
		Warnf("compiler", "if: expected %d arguments, got %d", 3, 2)
	})
	if len(got) != 1 {
		t.Fatalf("len(diagnostics) = %d, want 1", len(got))
	}
	if got[0].Source != "compiler" {
		t.Errorf("source = %q, want compiler", got[0].Source)
	}
	if got[0].Message != "if: expected 3 arguments, got 2" {
		t.Errorf("message = %q", got[0].Message)
	}
}

func TestCollectNested(t *testing.T) {
	var inner []Diagnostic
	outer := Collect(func() {
		Warnf("vm", "first")
		inner = Collect(func() {
			Warnf("vm", "second")
		})
	})
	if len(inner) != 1 || inner[0].Message != "second" {
		t.Errorf("inner = %v, want [vm: second]", inner)
	}
	if len(outer) != 2 {
		t.Errorf("len(outer) = %d, want 2", len(outer))
	}
}

func TestCollectNothing(t *testing.T) {
	got := Collect(func() {})
	if len(got) != 0 {
		t.Errorf("diagnostics = %v, want none", got)
	}
}

func TestCount(t *testing.T) {
	before := Count()
	Warnf("eval", "unbound symbol %s", "x")
	if Count() != before+1 {
		t.Errorf("Count() = %d, want %d", Count(), before+1)
	}
}

func TestDiagnosticString(t *testing.T) {
	d := Diagnostic{Source: "eval", Message: "boom"}
	if d.String() != "eval: boom" {
		t.Errorf("String() = %q, want %q", d.String(), "eval: boom")
	}
}
