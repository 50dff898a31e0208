// Package symtab implements the compiler's symbol table: a mapping
// from lexeme text to a single canonical *token.Token. Entries are
// inserted once by the scanner and promoted in place by the parser
// during declaration processing; they are never removed.
package symtab

import "rascal/internal/token"

// Table is a lexeme -> *token.Token map, plus the insertion order of
// its keys. The order is kept (rather than relying on Go's randomized
// map iteration) so that bulk promotion assigns addresses in
// declaration order, matching spec §3's data-address allocator
// invariant.
type Table struct {
	entries map[string]*token.Token
	order   []string
}

// New returns an empty table.
func New() *Table {
	return &Table{entries: make(map[string]*token.Token)}
}

// InsertIfAbsent adds tok under its lexeme if no entry exists yet, and
// returns the table's canonical entry for that lexeme either way — a
// stable pointer the scanner can hand back to callers so that a later
// promotion is visible without anyone needing to re-read the table.
func (t *Table) InsertIfAbsent(tok token.Token) *token.Token {
	if t.entries == nil {
		t.entries = make(map[string]*token.Token)
	}
	if existing, ok := t.entries[tok.Lexeme]; ok {
		return existing
	}
	entry := tok
	t.entries[tok.Lexeme] = &entry
	t.order = append(t.order, tok.Lexeme)
	return t.entries[tok.Lexeme]
}

// Lookup returns the canonical entry for lexeme, if any.
func (t *Table) Lookup(lexeme string) (*token.Token, bool) {
	entry, ok := t.entries[lexeme]
	return entry, ok
}

// Update overwrites the entry for lexeme in place, keeping the same
// key. It panics if lexeme is not already present, since update is
// only ever used by declaration processing on tokens the scanner has
// already inserted.
func (t *Table) Update(lexeme string, tok token.Token) {
	entry, ok := t.entries[lexeme]
	if !ok {
		panic("symtab: Update of absent lexeme " + lexeme)
	}
	*entry = tok
}

// AddressOf returns the data-segment address of lexeme, if it has been
// promoted to a variable kind.
func (t *Table) AddressOf(lexeme string) (uint32, bool) {
	entry, ok := t.entries[lexeme]
	if !ok || entry.Addr == nil {
		return 0, false
	}
	return *entry.Addr, true
}

// PromoteAllPlainIdentsToScalar rewrites every entry currently of
// token.Ident kind to token.ScalarVar, assigning successive addresses
// starting at startAddr spaced by elemSize. It returns the number of
// entries touched, so the caller can advance its own data-address
// cursor by count*elemSize.
func (t *Table) PromoteAllPlainIdentsToScalar(startAddr uint32, elemSize uint32) (count int) {
	addr := startAddr
	for _, lexeme := range t.order {
		entry := t.entries[lexeme]
		if entry.Kind != token.Ident {
			continue
		}
		a := addr
		entry.Kind = token.ScalarVar
		entry.Addr = &a
		addr += elemSize
		count++
	}
	return count
}

// PromoteAllPlainIdentsToArray is the array analogue of
// PromoteAllPlainIdentsToScalar: each touched entry becomes an
// token.ArrayVar carrying (lo, hi), and consumes regionSize bytes of
// address space. Per the known stride quirk this contract inherits
// from the source toolchain (see DESIGN.md), callers must ensure at
// most one identifier is being promoted per call — the parser enforces
// this by rejecting multi-name array declarations outright, so a
// single call here only ever touches one entry.
func (t *Table) PromoteAllPlainIdentsToArray(startAddr uint32, regionSize uint32, lo, hi int64) (count int) {
	addr := startAddr
	for _, lexeme := range t.order {
		entry := t.entries[lexeme]
		if entry.Kind != token.Ident {
			continue
		}
		a, l, h := addr, lo, hi
		entry.Kind = token.ArrayVar
		entry.Addr = &a
		entry.Low = &l
		entry.High = &h
		addr += regionSize
		count++
	}
	return count
}
