package printer

import (
	"sort"
	"strings"
	"sync"
)

// RegisterMap maps till register IDs to the printer their drawer hangs off
type RegisterMap struct {
	mu       sync.RWMutex
	printers map[string]string
}

// NewRegisterMap creates a register map from configuration
func NewRegisterMap(mapping map[string]string) *RegisterMap {
	m := &RegisterMap{
		printers: make(map[string]string, len(mapping)),
	}
	for id, name := range mapping {
		m.Set(id, name)
	}
	return m
}

// Set assigns a printer to a register
func (m *RegisterMap) Set(registerID, printerName string) {
	id := strings.TrimSpace(registerID)
	name := strings.TrimSpace(printerName)
	if id == "" || name == "" {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.printers[id] = name
}

// PrinterFor gets the printer mapped to a register
func (m *RegisterMap) PrinterFor(registerID string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	name, ok := m.printers[strings.TrimSpace(registerID)]
	return name, ok
}

// RegisterIDs returns mapped register IDs, sorted
func (m *RegisterMap) RegisterIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.printers))
	for id := range m.printers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ResolveRegisterID picks the current register: the visible form field,
// then the hidden form field, then the session default. "0" is the
// placeholder option of an unselected register select and counts as unset.
func ResolveRegisterID(visible, hidden, sessionDefault string) string {
	for _, v := range []string{visible, hidden, sessionDefault} {
		if v = strings.TrimSpace(v); v != "" && v != "0" {
			return v
		}
	}
	return ""
}
