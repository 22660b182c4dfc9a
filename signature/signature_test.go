package signature

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/carbocation/sigvival"
)

func TestNewDeduplicates(t *testing.T) {
	sig, err := New(" Hypoxia ", []string{"VEGFA", " CA9", "", "VEGFA", "SLC2A1", "CA9"})
	if err != nil {
		t.Fatal(err)
	}
	if sig.Name != "Hypoxia" {
		t.Errorf("Name was %q", sig.Name)
	}
	if expected := []string{"VEGFA", "CA9", "SLC2A1"}; !reflect.DeepEqual(sig.Genes, expected) {
		t.Errorf("Got %v, expected %v", sig.Genes, expected)
	}
}

func TestNewEmpty(t *testing.T) {
	if _, err := New("Empty", []string{" ", ""}); !errors.Is(err, sigvival.ErrInvalidSignature) {
		t.Errorf("Expected ErrInvalidSignature, got %v", err)
	}
}

func TestParseList(t *testing.T) {
	got := ParseList("TP53, MDM2;CDKN1A\nBAX\tBBC3  ")
	if expected := []string{"TP53", "MDM2", "CDKN1A", "BAX", "BBC3"}; !reflect.DeepEqual(got, expected) {
		t.Errorf("Got %v, expected %v", got, expected)
	}
}

func TestResolve(t *testing.T) {
	sig := Signature{Name: "x", Genes: []string{"A", "B", "C"}}
	found, missing := sig.Resolve(func(g string) bool { return g != "B" })
	if !reflect.DeepEqual(found, []string{"A", "C"}) || !reflect.DeepEqual(missing, []string{"B"}) {
		t.Errorf("Got found=%v missing=%v", found, missing)
	}
}

func TestReadGMT(t *testing.T) {
	gmt := "SET_ONE\thttp://x\tA\tB\n" +
		"SET_TWO\tna\tC\tD\tC\n"

	sig, err := ReadGMT(strings.NewReader(gmt), "set_two")
	if err != nil {
		t.Fatal(err)
	}
	if sig.Name != "SET_TWO" || !reflect.DeepEqual(sig.Genes, []string{"C", "D"}) {
		t.Errorf("Got %+v", sig)
	}

	sig, err = ReadGMT(strings.NewReader(gmt), "")
	if err != nil {
		t.Fatal(err)
	}
	if sig.Name != "SET_ONE" || !reflect.DeepEqual(sig.Genes, []string{"A", "B"}) {
		t.Errorf("Got %+v", sig)
	}

	if _, err := ReadGMT(strings.NewReader("BAD\tonly\n"), ""); !errors.Is(err, sigvival.ErrInvalidSignature) {
		t.Errorf("Expected ErrInvalidSignature for a short line, got %v", err)
	}
}

func TestReadGRP(t *testing.T) {
	grp := "# my genes\nTP53\n\nMDM2, CDKN1A\n"

	sig, err := Read(strings.NewReader(grp), "p53.grp", "p53")
	if err != nil {
		t.Fatal(err)
	}
	if expected := []string{"TP53", "MDM2", "CDKN1A"}; !reflect.DeepEqual(sig.Genes, expected) {
		t.Errorf("Got %v, expected %v", sig.Genes, expected)
	}
}
