package opspec

import (
	"errors"
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2"

	"github.com/OpenTraceLab/OpenTraceISP/pkg/fuse"
)

// ErrSyntax is wrapped by every malformed operation.
var ErrSyntax = errors.New("opspec: invalid operation")

// Kind is what an operation does to its memory.
type Kind uint8

const (
	Read Kind = iota
	Write
	// Verify compares the memory against the value without writing it.
	Verify
)

func (k Kind) String() string {
	switch k {
	case Read:
		return "r"
	case Write:
		return "w"
	case Verify:
		return "v"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// Operation is one parsed -U argument.
type Operation struct {
	Group    fuse.Group
	Kind     Kind
	Value    uint8
	HasValue bool
}

func (o Operation) String() string {
	if !o.HasValue {
		return fmt.Sprintf("%s:%s", memoryName(o.Group), o.Kind)
	}
	return fmt.Sprintf("%s:%s:0x%02X:m", memoryName(o.Group), o.Kind, o.Value)
}

// Request converts a write into the programmer's form.
func (o Operation) Request() fuse.WriteRequest {
	if o.Kind != Write || !o.HasValue {
		return fuse.Omit(o.Group)
	}
	return fuse.Set(o.Group, o.Value)
}

var parser = participle.MustBuild[operation](
	participle.Lexer(opLexer),
	participle.Elide("Whitespace"),
)

// Parse parses "memory:op[:value[:format]]". Memories are lfuse, hfuse,
// efuse, lock or any name fuse.ParseGroup accepts. Only the immediate
// format "m" is supported.
func Parse(s string) (Operation, error) {
	ast, err := parser.ParseString("", s)
	if err != nil {
		return Operation{}, fmt.Errorf("%w %q: %v", ErrSyntax, s, err)
	}

	g, err := fuse.ParseGroup(ast.Memory)
	if err != nil {
		return Operation{}, fmt.Errorf("%w %q: %v", ErrSyntax, s, err)
	}
	op := Operation{Group: g}

	switch strings.ToLower(ast.Op) {
	case "r":
		op.Kind = Read
	case "w":
		op.Kind = Write
	case "v":
		op.Kind = Verify
	default:
		return Operation{}, fmt.Errorf("%w %q: unknown operation %q", ErrSyntax, s, ast.Op)
	}

	if ast.Format != nil && !strings.EqualFold(*ast.Format, "m") {
		return Operation{}, fmt.Errorf("%w %q: format %q not supported, only immediate (m)", ErrSyntax, s, *ast.Format)
	}

	if ast.Value == nil {
		if op.Kind != Read {
			return Operation{}, fmt.Errorf("%w %q: %s needs a value", ErrSyntax, s, op.Kind)
		}
		return op, nil
	}
	if op.Kind == Read {
		return Operation{}, fmt.Errorf("%w %q: read takes no value", ErrSyntax, s)
	}

	v, err := fuse.ParseByte(*ast.Value)
	if err != nil {
		return Operation{}, err
	}
	op.Value, op.HasValue = v, true
	return op, nil
}

// ParseAll parses each argument and rejects two operations of the same kind
// on one memory.
func ParseAll(specs []string) ([]Operation, error) {
	type key struct {
		g fuse.Group
		k Kind
	}
	seen := make(map[key]bool)

	ops := make([]Operation, 0, len(specs))
	for _, s := range specs {
		op, err := Parse(s)
		if err != nil {
			return nil, err
		}
		k := key{op.Group, op.Kind}
		if seen[k] {
			return nil, fmt.Errorf("%w %q: %s given twice for %s", ErrSyntax, s, op.Kind, memoryName(op.Group))
		}
		seen[k] = true
		ops = append(ops, op)
	}
	return ops, nil
}

// Writes collects the write requests of ops in group order.
func Writes(ops []Operation) []fuse.WriteRequest {
	var reqs []fuse.WriteRequest
	for _, g := range fuse.AllGroups {
		for _, op := range ops {
			if op.Group == g && op.Kind == Write {
				reqs = append(reqs, op.Request())
			}
		}
	}
	return reqs
}

func memoryName(g fuse.Group) string {
	switch g {
	case fuse.GroupLow:
		return "lfuse"
	case fuse.GroupHigh:
		return "hfuse"
	case fuse.GroupExtended:
		return "efuse"
	default:
		return "lock"
	}
}
