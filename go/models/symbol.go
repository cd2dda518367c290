package models

import "fmt"

// Symbol is a single exported name. Ordinal and Addr are only meaningful when the
// exporting format records them.
type Symbol struct {
	Name       string
	Ordinal    uint32
	HasOrdinal bool
	Addr       uint64
	Forwarder  string
}

func (s Symbol) String() string {
	if s.HasOrdinal {
		return fmt.Sprintf("%s@%d", s.Name, s.Ordinal)
	}
	return s.Name
}

// SymbolLookup returns the first symbol named name.
func SymbolLookup(syms []Symbol, name string) (Symbol, bool) {
	for _, sym := range syms {
		if sym.Name == name {
			return sym, true
		}
	}
	return Symbol{}, false
}

// SymbolNames returns the names of syms in order.
func SymbolNames(syms []Symbol) []string {
	names := make([]string, len(syms))
	for i, sym := range syms {
		names[i] = sym.Name
	}
	return names
}
