package printer

import "strings"

// DefaultPattern names the fallback entry. It never matches a printer name.
const DefaultPattern = "_default"

// CodeEntry maps a printer-name fragment to its drawer kick sequence
type CodeEntry struct {
	Pattern     string `json:"pattern"`
	Bytes       []byte `json:"bytes"`
	Description string `json:"description"`
}

// ESC p m t1 t2 pulses for the two drawer connector wirings we see in the field.
var (
	kickPin2Long  = []byte{0x1B, 0x70, 0x30, 0x37, 0x79} // ESC p '0' 55 121
	kickPin2Short = []byte{0x1B, 0x70, 0x00, 0x32, 0xFA} // ESC p 0 50 250
)

// CodeRegistry resolves printer names to raw drawer-open sequences
type CodeRegistry struct {
	entries []CodeEntry
	def     CodeEntry
}

// NewCodeRegistry creates the registry with the built-in printer table
func NewCodeRegistry() *CodeRegistry {
	return NewCodeRegistryWithEntries(
		CodeEntry{Pattern: "Bixolon SRP-350", Bytes: kickPin2Long, Description: "Bixolon SRP-350"},
		CodeEntry{Pattern: "Epson TM-T88V", Bytes: kickPin2Long, Description: "Epson TM-T88V"},
		CodeEntry{Pattern: "Metapace T", Bytes: kickPin2Long, Description: "Metapace T-series"},
		CodeEntry{Pattern: "Citizen CBM1000", Bytes: kickPin2Short, Description: "Citizen CBM1000"},
		CodeEntry{Pattern: "Citizen CT-S2000", Bytes: kickPin2Short, Description: "Citizen CT-S2000"},
		CodeEntry{Pattern: "Citizen CTS2000", Bytes: kickPin2Short, Description: "Citizen CT-S2000 (no hyphen)"},
		CodeEntry{Pattern: "CT-S2000", Bytes: kickPin2Short, Description: "Citizen CT-S2000 (model only)"},
		CodeEntry{Pattern: "CTS2000", Bytes: kickPin2Short, Description: "Citizen CT-S2000 (model only, no hyphen)"},
		CodeEntry{Pattern: "CT S2000", Bytes: kickPin2Short, Description: "Citizen CT-S2000 (spaced)"},
	)
}

// NewCodeRegistryWithEntries creates a registry with custom entries (for testing).
// Order of entries is match order.
func NewCodeRegistryWithEntries(entries ...CodeEntry) *CodeRegistry {
	r := &CodeRegistry{
		entries: make([]CodeEntry, 0, len(entries)),
		def: CodeEntry{
			Pattern:     DefaultPattern,
			Bytes:       kickPin2Long,
			Description: "Default ESC/POS drawer kick",
		},
	}
	for _, e := range entries {
		if e.Pattern == "" || e.Pattern == DefaultPattern {
			continue
		}
		e.Bytes = append([]byte(nil), e.Bytes...)
		r.entries = append(r.entries, e)
	}
	return r
}

// Resolve returns the drawer-open bytes for a printer name.
// Unknown or empty names get the default sequence.
func (r *CodeRegistry) Resolve(printerName string) []byte {
	e := r.Lookup(printerName)
	return append([]byte(nil), e.Bytes...)
}

// Lookup returns the entry that Resolve would use
func (r *CodeRegistry) Lookup(printerName string) CodeEntry {
	name := strings.ToLower(strings.TrimSpace(printerName))
	if name == "" {
		return r.def
	}
	for _, e := range r.entries {
		if strings.Contains(name, strings.ToLower(e.Pattern)) {
			return e
		}
	}
	return r.def
}

// Default returns the fallback sequence
func (r *CodeRegistry) Default() []byte {
	return append([]byte(nil), r.def.Bytes...)
}

// Entries returns all entries in match order, default last
func (r *CodeRegistry) Entries() []CodeEntry {
	out := make([]CodeEntry, 0, len(r.entries)+1)
	out = append(out, r.entries...)
	return append(out, r.def)
}
