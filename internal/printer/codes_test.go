package printer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var (
	epsonBytes   = []byte{27, 112, 48, 55, 121}
	citizenBytes = []byte{27, 112, 0, 50, 250}
)

func TestResolve_Epson(t *testing.T) {
	r := NewCodeRegistry()

	for _, name := range []string{
		"Epson TM-T88V",
		"EPSON TM-T88V Receipt",
		"\\\\till-01\\epson tm-t88v (copy 1)",
		"Front counter Epson TM-T88V",
	} {
		assert.Equal(t, epsonBytes, r.Resolve(name), name)
	}
}

func TestResolve_CitizenVariants(t *testing.T) {
	r := NewCodeRegistry()

	for _, name := range []string{
		"Citizen CT-S2000",
		"CITIZEN CTS2000",
		"ct-s2000",
		"Citizen CT S2000 USB",
		"Citizen CBM1000 Type II",
		"POS-CTS2000-2",
	} {
		assert.Equal(t, citizenBytes, r.Resolve(name), name)
	}
}

func TestResolve_DefaultFallback(t *testing.T) {
	r := NewCodeRegistry()

	assert.Equal(t, epsonBytes, r.Resolve(""))
	assert.Equal(t, epsonBytes, r.Resolve("   "))
	assert.Equal(t, epsonBytes, r.Resolve("Star TSP100"))
	assert.Equal(t, epsonBytes, r.Resolve("_default"), "the default pattern is never matched by name")
	assert.Equal(t, DefaultPattern, r.Lookup("unknown").Pattern)
}

func TestResolve_FirstMatchWins(t *testing.T) {
	r := NewCodeRegistryWithEntries(
		CodeEntry{Pattern: "alpha", Bytes: []byte{1}},
		CodeEntry{Pattern: "alpha beta", Bytes: []byte{2}},
	)

	assert.Equal(t, []byte{1}, r.Resolve("ALPHA BETA"))
}

func TestResolve_ReturnsCopy(t *testing.T) {
	r := NewCodeRegistry()

	b := r.Resolve("Epson TM-T88V")
	b[0] = 0
	assert.Equal(t, epsonBytes, r.Resolve("Epson TM-T88V"))
}

func TestEntries_DefaultLast(t *testing.T) {
	entries := NewCodeRegistry().Entries()

	assert.Equal(t, DefaultPattern, entries[len(entries)-1].Pattern)
	assert.Equal(t, "Bixolon SRP-350", entries[0].Pattern)
}

func TestResolveRegisterID(t *testing.T) {
	assert.Equal(t, "2", ResolveRegisterID("2", "5", "9"))
	assert.Equal(t, "5", ResolveRegisterID("", "5", "9"))
	assert.Equal(t, "9", ResolveRegisterID(" ", "0", "9"))
	assert.Equal(t, "", ResolveRegisterID("", "", ""))
}

func TestRegisterMap(t *testing.T) {
	m := NewRegisterMap(map[string]string{"3": "Citizen CT-S2000", "": "ignored", "4": " "})

	name, ok := m.PrinterFor(" 3 ")
	assert.True(t, ok)
	assert.Equal(t, "Citizen CT-S2000", name)

	_, ok = m.PrinterFor("4")
	assert.False(t, ok)
	assert.Equal(t, []string{"3"}, m.RegisterIDs())
}
