// Package scanner turns a source byte buffer into a stream of
// token.Token values, exposing a one-token lookahead: each call to
// Advance overwrites the public CurToken field. Identifiers flow
// through a symtab.Table so that a later reference to an already-seen
// lexeme observes whatever the parser has promoted it to.
package scanner

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"rascal/internal/charclass"
	"rascal/internal/symtab"
	"rascal/internal/token"
)

// LexError reports an illegal byte, a malformed lexeme, or an
// unrecognized operator/delimiter sequence.
type LexError struct {
	Pos     token.Pos
	Message string
}

func (e LexError) Error() string {
	return fmt.Sprintf("Lexer Error: %s (%v)", e.Message, e.Pos)
}

// Scanner consumes raw source bytes and yields one token at a time.
type Scanner struct {
	src  []byte
	pos  int
	line int
	col  int

	sym *symtab.Table

	// CurToken is overwritten by every call to Advance.
	CurToken token.Token
}

// New returns a scanner over src that inserts newly seen identifiers
// into sym.
func New(src []byte, sym *symtab.Table) *Scanner {
	return &Scanner{src: src, line: 1, col: 1, sym: sym}
}

func (s *Scanner) here() token.Pos { return token.Pos{Line: s.line, Col: s.col} }

func (s *Scanner) peekByte() byte {
	if s.pos >= len(s.src) {
		return 0
	}
	return s.src[s.pos]
}

func (s *Scanner) peekByteAt(offset int) byte {
	if s.pos+offset >= len(s.src) {
		return 0
	}
	return s.src[s.pos+offset]
}

// nextByte consumes and returns the byte at the scan cursor, advancing
// (line, col): a line-feed or carriage-return advances line and resets
// col to 0 before every consumed byte's post-increment of col by 1.
func (s *Scanner) nextByte() byte {
	b := s.src[s.pos]
	s.pos++
	if b == '\n' || b == '\r' {
		s.line++
		s.col = 0
	}
	s.col++
	return b
}

// Advance scans the next token into CurToken. The last byte of the
// source is never scanned: once the scan cursor reaches it, Advance
// yields EOF, so a source ends with one trailing byte (typically a
// newline) after the program's final '.'. It returns a LexError on
// illegal bytes, malformed lexemes, or unrecognized operator sequences;
// the scanner does not attempt recovery.
func (s *Scanner) Advance() error {
	for {
		if s.pos >= len(s.src)-1 {
			s.CurToken = token.Token{Kind: token.EOF, Pos: s.here()}
			return nil
		}

		switch charclass.Classify(s.peekByte()) {
		case charclass.Whitespace:
			s.nextByte()
			continue
		case charclass.Digit:
			s.CurToken = s.readNumber()
			return nil
		case charclass.Alpha:
			tok, err := s.readAlpha()
			if err != nil {
				return err
			}
			s.CurToken = tok
			return nil
		case charclass.Punct:
			tok, err := s.readPunct()
			if err != nil {
				return err
			}
			s.CurToken = tok
			return nil
		default:
			return LexError{Pos: s.here(), Message: fmt.Sprintf("illegal byte 0x%02x", s.peekByte())}
		}
	}
}

// readNumber reads a digit run, with one embedded '.' permitted only
// when the byte following it is itself a digit — so that the `..`
// range operator in `array[1..3]` is never mis-scanned as a decimal
// point.
func (s *Scanner) readNumber() token.Token {
	startPos := s.here()
	var lexeme strings.Builder

	for charclass.Classify(s.peekByte()) == charclass.Digit {
		lexeme.WriteByte(s.nextByte())
	}

	kind := token.IntLit
	if s.peekByte() == '.' && charclass.Classify(s.peekByteAt(1)) == charclass.Digit {
		kind = token.RealLit
		lexeme.WriteByte(s.nextByte()) // consume '.'
		for charclass.Classify(s.peekByte()) == charclass.Digit {
			lexeme.WriteByte(s.nextByte())
		}
	}

	return token.Token{Kind: kind, Lexeme: lexeme.String(), Pos: startPos}
}

// readAlpha reads an alpha/digit run and classifies it as a keyword or
// a plain identifier. A new identifier is inserted into the symbol
// table; either way the returned token's Kind/Addr/Low/High come from
// the table's canonical entry, so a reference after promotion sees the
// promoted kind. Pos always reflects this occurrence, not the
// occurrence that first declared the symbol table entry.
func (s *Scanner) readAlpha() (token.Token, error) {
	startPos := s.here()
	var lexeme strings.Builder

	for {
		c := charclass.Classify(s.peekByte())
		if c != charclass.Alpha && c != charclass.Digit {
			break
		}
		lexeme.WriteByte(s.nextByte())
	}

	text := lexeme.String()
	if !utf8.ValidString(text) {
		return token.Token{}, LexError{Pos: startPos, Message: fmt.Sprintf("invalid UTF-8 in lexeme %q", text)}
	}

	if kind, ok := token.Keywords[text]; ok {
		return token.Token{Kind: kind, Lexeme: text, Pos: startPos}, nil
	}

	canonical := s.sym.InsertIfAbsent(token.Token{Kind: token.Ident, Lexeme: text, Pos: startPos})
	result := *canonical
	result.Pos = startPos
	return result, nil
}

// readPunct accumulates consecutive punctuation bytes for as long as the
// lexeme, extended by the next byte, is still one of token.Operators
// (longest match), so `*(` or `])` split into two tokens while `:=`,
// `<>`, `<=`, `>=` and `..` stay whole. A semicolon always stands alone:
// it terminates the lexeme being accumulated rather than joining it, and
// is never itself extended.
func (s *Scanner) readPunct() (token.Token, error) {
	startPos := s.here()
	first := s.nextByte()

	if first == ';' {
		return token.Token{Kind: token.Semicolon, Lexeme: ";", Pos: startPos}, nil
	}

	var lexeme strings.Builder
	lexeme.WriteByte(first)
	for charclass.Classify(s.peekByte()) == charclass.Punct && s.peekByte() != ';' {
		if _, ok := token.Operators[lexeme.String()+string(s.peekByte())]; !ok {
			break
		}
		lexeme.WriteByte(s.nextByte())
	}

	text := lexeme.String()
	kind, ok := token.Operators[text]
	if !ok {
		return token.Token{}, LexError{Pos: startPos, Message: fmt.Sprintf("unrecognized symbol %q", text)}
	}
	return token.Token{Kind: kind, Lexeme: text, Pos: startPos}, nil
}
