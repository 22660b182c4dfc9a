package main

import (
	"math/rand"

	"github.com/carbocation/sigvival/signature"
	"github.com/carbocation/sigvival/stratify"
)

// RandHeteroglyphs produces a string of n symbols which do
// not look like one another. (Derived to be the opposite of
// homoglyphs, which are symbols which look similar to one
// another and cannot be quickly distinguished.)
func RandHeteroglyphs(n int) string {
	var letters = []rune("abcdefghkmnpqrstwxyz")
	lenLetters := len(letters)
	b := make([]rune, n)
	for i := range b {
		b[i] = letters[rand.Intn(lenLetters)]
	}
	return string(b)
}

// CutPointChoice is one option of the cut-point menu.
type CutPointChoice struct {
	Value string
	Label string
}

var cutPointChoices = []CutPointChoice{
	{stratify.CutPoint{Policy: stratify.Median}.String(), "Median"},
	{stratify.CutPoint{Policy: stratify.Tertile}.String(), "Tertile"},
	{stratify.CutPoint{Policy: stratify.TertileExtremes}.String(), "Tertile - Top & Bottom only"},
	{stratify.CutPoint{Policy: stratify.Quartiles}.String(), "Quartile"},
	{stratify.CutPoint{Policy: stratify.Quartile}.String(), "Quartile - Top & Bottom only"},
	{"percentile", "Custom percentile"},
}

// exampleSignatures prefill the form.
func exampleSignatures() []signature.Signature {
	return []signature.Signature{
		{Name: "Hypoxia (Buffa)", Genes: []string{"VEGFA", "SLC2A1", "PGAM1", "ENO1", "LDHA", "TPI1", "P4HA1", "MRPS17", "CDKN3", "ADM", "NDRG1", "TUBB6", "ALDOA", "MIF", "ACOT7"}},
		{Name: "Proliferation", Genes: []string{"MKI67", "TOP2A", "CCNB1", "BIRC5", "CDK1", "MCM2", "PCNA", "AURKA"}},
	}
}
