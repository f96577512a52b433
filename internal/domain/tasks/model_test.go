package tasks

import "testing"

func TestKeyString(t *testing.T) {
	k := Key{EjeID: "E1", ObjID: "O1", Year: 2025, MesIdx: 0, TareaIdx: 0}
	if got := k.String(); got != "E1-O1-2025-0-0" {
		t.Fatalf("key = %q, want E1-O1-2025-0-0", got)
	}

	k = Key{EjeID: "E4", ObjID: "O12", Year: 2026, MesIdx: 11, TareaIdx: 3}
	if got := k.String(); got != "E4-O12-2026-11-3" {
		t.Fatalf("key = %q, want E4-O12-2026-11-3", got)
	}
}

func TestEstadoValid(t *testing.T) {
	for _, e := range []Estado{EstadoPendiente, EstadoEnviada, EstadoValidada, EstadoRechazada} {
		if !e.Valid() {
			t.Fatalf("estado %q should be valid", e)
		}
	}
	if Estado("aprobada").Valid() {
		t.Fatal("unknown estado should not be valid")
	}
	if Estado("").Valid() {
		t.Fatal("empty estado should not be valid")
	}
}
