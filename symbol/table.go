package symbol

import "github.com/elfload/elfload/elferr"

// Table bundles the three tables a relocation entry's r_sym index needs
// resolved against: the symbol array itself (indexed access, used when
// a relocation names a symbol directly), the string table (for that
// symbol's name), and the GNU hash index (for resolving a name back to
// a symbol when searching a dependency).
type Table struct {
	read       Reader
	SymtabAddr uintptr
	StrtabAddr uintptr
	StrSize    uintptr
	Hash       *GnuHash
}

// NewTable builds a Table over already-mapped memory.
func NewTable(read Reader, symtabAddr, strtabAddr, strSize uintptr, hash *GnuHash) *Table {
	return &Table{read: read, SymtabAddr: symtabAddr, StrtabAddr: strtabAddr, StrSize: strSize, Hash: hash}
}

// ByIndex reads the Sym at dynsym index idx, as a relocation's r_sym
// field names it directly rather than by name.
func (t *Table) ByIndex(idx uint32) (Sym, error) {
	b, err := t.read(t.SymtabAddr+uintptr(idx)*symEntSize, symEntSize)
	if err != nil {
		return Sym{}, elferr.NewIOError(err)
	}
	return decodeSym(b), nil
}

// Name resolves a symbol's st_name offset into the string table.
func (t *Table) Name(sym Sym) (string, error) {
	return t.readCStr(t.StrtabAddr + uintptr(sym.NameOff))
}

func (t *Table) readCStr(addr uintptr) (string, error) {
	const chunk = 64
	var out []byte
	for {
		b, err := t.read(addr+uintptr(len(out)), chunk)
		if err != nil {
			return "", elferr.NewIOError(err)
		}
		for _, c := range b {
			if c == 0 {
				return string(out), nil
			}
			out = append(out, c)
		}
	}
}

// Lookup searches this table's GNU hash index for name, for use when
// scanning a dependency's exported symbols.
func (t *Table) Lookup(name string) (Sym, bool, error) {
	return t.Hash.Lookup(name, t.SymtabAddr, t.StrtabAddr,
		func(idx uint32) (Sym, error) { return t.ByIndex(idx) },
		func(off uint32) (string, error) { return t.readCStr(t.StrtabAddr + uintptr(off)) },
	)
}

func decodeSym(b []byte) Sym {
	return Sym{
		NameOff: le32(b[0:4]),
		Info:    b[4],
		Other:   b[5],
		Shndx:   le16(b[6:8]),
		Value:   le64(b[8:16]),
		Size:    le64(b[16:24]),
	}
}

func le16(b []byte) uint16 { return uint16(b[0]) | uint16(b[1])<<8 }
func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
func le64(b []byte) uint64 {
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}
