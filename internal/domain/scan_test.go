package domain

import "testing"

func TestInferDomain(t *testing.T) {
	tests := []struct {
		in   string
		want Domain
	}{
		{"Sea (Side-Scan Sonar)", DomainSea},
		{"SSS high frequency", DomainSea},
		{"Land (Ground Penetrating Radar - GPR)", DomainLand},
		{"GPR only", DomainLand},
		{"Air (Ultrasonic Array Sensor)", DomainAir},
		{"Ultrasonic", DomainAir},
		{"Generic Sonar", DomainGeneric},
		{"", DomainGeneric},
		{"sea lowercase", DomainGeneric},
	}
	for _, tt := range tests {
		if got := InferDomain(tt.in); got != tt.want {
			t.Errorf("InferDomain(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestGridShapeAndMatrix(t *testing.T) {
	g := NewGrid(2, 3)
	g.Set(1, 2, 0.5)

	if got := g.Shape(); got != "(2, 3)" {
		t.Fatalf("Shape() = %q", got)
	}
	m := g.Matrix()
	if len(m) != 2 || len(m[0]) != 3 {
		t.Fatalf("Matrix() dims = %dx%d", len(m), len(m[0]))
	}
	if m[1][2] != 0.5 || g.At(1, 2) != 0.5 {
		t.Fatalf("value not stored")
	}
	m[0][0] = 9
	if g.At(0, 0) != 0 {
		t.Fatal("Matrix() must copy")
	}
}

func TestTranscriptLast(t *testing.T) {
	tr := Transcript{
		{Role: RoleAssistant, Content: "a"},
		{Role: RoleUser, Content: "b"},
		{Role: RoleAssistant, Content: "c"},
	}
	if got := tr.Last(2); len(got) != 2 || got[0].Content != "b" {
		t.Fatalf("Last(2) = %+v", got)
	}
	if got := tr.Last(0); len(got) != 3 {
		t.Fatalf("Last(0) = %+v", got)
	}
	if got := tr.Last(10); len(got) != 3 {
		t.Fatalf("Last(10) = %+v", got)
	}
}

func TestScanRecordIsSimulated(t *testing.T) {
	if !(&ScanRecord{ScanID: "SIM20260101000000-abcdef"}).IsSimulated() {
		t.Error("SIM prefix should be simulated")
	}
	if (&ScanRecord{ScanID: "SEA001"}).IsSimulated() {
		t.Error("fixture should not be simulated")
	}
}
