// Package fixture loads analysis inputs from YAML: type and method metadata,
// subroutines with their blocks, successor edges, edge subroutine chains and
// instruction listings in a small assembler syntax.
package fixture

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/funvibe/ilstack/internal/cfg"
	"github.com/funvibe/ilstack/internal/config"
	"github.com/funvibe/ilstack/internal/il"
	"github.com/funvibe/ilstack/internal/metadata"
)

// File is the YAML document
type File struct {
	Name        string            `yaml:"name"`
	Types       []TypeSpec        `yaml:"types"`
	Methods     []MethodSpec      `yaml:"methods"`
	Subroutines []SubSpec         `yaml:"subroutines"`
	Invariants  map[string]string `yaml:"invariants,omitempty"`
}

// TypeSpec declares a type and its fields
type TypeSpec struct {
	Name   string      `yaml:"name"`
	Kind   string      `yaml:"kind"` // value or reference
	Args   []string    `yaml:"args,omitempty"`
	Fields []FieldSpec `yaml:"fields,omitempty"`
}

// FieldSpec declares a field
type FieldSpec struct {
	Name   string `yaml:"name"`
	Type   string `yaml:"type"`
	Static bool   `yaml:"static,omitempty"`
}

// MethodSpec declares a method. Constructors are named ".ctor".
type MethodSpec struct {
	Name     string      `yaml:"name"`
	Type     string      `yaml:"type"`
	Result   string      `yaml:"result,omitempty"`
	Static   bool        `yaml:"static,omitempty"`
	Virtual  bool        `yaml:"virtual,omitempty"`
	Params   []ParamSpec `yaml:"params,omitempty"`
	TypeArgs []string    `yaml:"type_args,omitempty"`
}

// ParamSpec declares a parameter
type ParamSpec struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

// SubSpec declares a subroutine. The labels "entry" and "exit" name its
// built-in entry and exit blocks.
type SubSpec struct {
	Name   string      `yaml:"name"`
	Kind   string      `yaml:"kind"`
	Method string      `yaml:"method,omitempty"`
	Delta  int         `yaml:"delta,omitempty"`
	Blocks []BlockSpec `yaml:"blocks"`
}

// BlockSpec declares a block
type BlockSpec struct {
	Label  string     `yaml:"label"`
	Catch  bool       `yaml:"catch,omitempty"`
	Filter bool       `yaml:"filter,omitempty"`
	Code   []string   `yaml:"code,omitempty"`
	Next   []string   `yaml:"next,omitempty"`
	Edges  []EdgeSpec `yaml:"edges,omitempty"`
}

// EdgeSpec appends a subroutine to the chain of an edge leaving the block
type EdgeSpec struct {
	To  string `yaml:"to"`
	Tag string `yaml:"tag"`
	Sub string `yaml:"sub"`
}

// Fixture is a loaded analysis input
type Fixture struct {
	Name    string
	Graph   *cfg.Graph
	Code    *il.Listing
	Meta    metadata.Model
	Types   map[string]*metadata.Type
	Methods map[string]*metadata.Method
	Fields  map[string]*metadata.Field
}

// Sub returns the subroutine called name
func (f *Fixture) Sub(name string) (*cfg.Subroutine, error) {
	s, ok := f.Graph.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%s: no subroutine %q", f.Name, name)
	}
	return s, nil
}

// Roots returns the method-body subroutines in declaration order
func (f *Fixture) Roots() []*cfg.Subroutine {
	var out []*cfg.Subroutine
	for _, s := range f.Graph.Subroutines() {
		if s.IsMethod() {
			out = append(out, s)
		}
	}
	return out
}

// IsFixture reports whether path has a fixture extension
func IsFixture(path string) bool {
	return slices.Contains(config.FixtureFileExtensions, strings.ToLower(filepath.Ext(path)))
}

// Load reads and builds a fixture file
func Load(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading fixture %s: %w", path, err)
	}
	return Parse(data, path)
}

// Parse builds a fixture from YAML bytes. The path argument is used for
// error messages and as the default name.
func Parse(data []byte, path string) (*Fixture, error) {
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if file.Name == "" {
		file.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	b := newBuilder(file.Name)
	if err := b.build(&file); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return b.fx, nil
}

type builder struct {
	fx     *Fixture
	labels map[*cfg.Subroutine]map[string]*cfg.Block
}

func newBuilder(name string) *builder {
	fx := &Fixture{
		Name:    name,
		Code:    il.NewListing(),
		Types:   make(map[string]*metadata.Type),
		Methods: make(map[string]*metadata.Method),
		Fields:  make(map[string]*metadata.Field),
	}
	fx.Graph = cfg.NewGraph(fx.Meta)
	for _, t := range builtinTypes() {
		fx.Types[t.Name] = t
	}
	return &builder{fx: fx, labels: make(map[*cfg.Subroutine]map[string]*cfg.Block)}
}

func builtinTypes() []*metadata.Type {
	var out []*metadata.Type
	for _, n := range []string{"int8", "int16", "int32", "int64", "uint8", "uint16", "uint32", "uint64", "float32", "float64", "bool", "char", "intptr"} {
		out = append(out, &metadata.Type{Name: n, Kind: metadata.ValueType})
	}
	for _, n := range []string{"object", "string"} {
		out = append(out, &metadata.Type{Name: n, Kind: metadata.ReferenceType})
	}
	return out
}

func (b *builder) build(file *File) error {
	if err := b.declareTypes(file.Types); err != nil {
		return err
	}
	if err := b.declareMethods(file.Methods); err != nil {
		return err
	}
	if err := b.declareSubroutines(file.Subroutines); err != nil {
		return err
	}
	for typ, name := range file.Invariants {
		t, err := b.typ(typ)
		if err != nil {
			return err
		}
		inv, ok := b.fx.Graph.Lookup(name)
		if !ok {
			return fmt.Errorf("invariant of %s: no subroutine %q", typ, name)
		}
		if !inv.IsInvariant() {
			return fmt.Errorf("invariant of %s: subroutine %q is a %s", typ, name, inv.Kind)
		}
		b.fx.Graph.SetInvariant(t, inv)
	}
	for i := range file.Subroutines {
		if err := b.defineSubroutine(&file.Subroutines[i]); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) declareTypes(specs []TypeSpec) error {
	for _, ts := range specs {
		if ts.Name == "" {
			return fmt.Errorf("type without a name")
		}
		if _, dup := b.fx.Types[ts.Name]; dup {
			return fmt.Errorf("type %s declared twice", ts.Name)
		}
		t := &metadata.Type{Name: ts.Name}
		switch ts.Kind {
		case "", "reference", "class":
			t.Kind = metadata.ReferenceType
		case "value", "struct":
			t.Kind = metadata.ValueType
		default:
			return fmt.Errorf("type %s: unknown kind %q", ts.Name, ts.Kind)
		}
		b.fx.Types[ts.Name] = t
	}
	// arguments and fields may reference any declared type
	for _, ts := range specs {
		t := b.fx.Types[ts.Name]
		for _, a := range ts.Args {
			at, err := b.typ(a)
			if err != nil {
				return fmt.Errorf("type %s: %w", ts.Name, err)
			}
			t.Args = append(t.Args, at)
		}
		for _, fs := range ts.Fields {
			ft, err := b.typ(fs.Type)
			if err != nil {
				return fmt.Errorf("field %s::%s: %w", ts.Name, fs.Name, err)
			}
			f := &metadata.Field{Name: fs.Name, Type: ft, Static: fs.Static, Declaring: t}
			b.fx.Fields[f.String()] = f
		}
	}
	return nil
}

func (b *builder) declareMethods(specs []MethodSpec) error {
	for _, ms := range specs {
		decl, err := b.typ(ms.Type)
		if err != nil {
			return fmt.Errorf("method %s: %w", ms.Name, err)
		}
		m := &metadata.Method{
			Name:      ms.Name,
			Declaring: decl,
			Static:    ms.Static,
			Ctor:      ms.Name == ".ctor",
			Virtual:   ms.Virtual,
		}
		if ms.Result != "" && ms.Result != "void" {
			if m.Result, err = b.typ(ms.Result); err != nil {
				return fmt.Errorf("method %s: %w", m.FullName(), err)
			}
		}
		for _, ps := range ms.Params {
			pt, err := b.typ(ps.Type)
			if err != nil {
				return fmt.Errorf("method %s: %w", m.FullName(), err)
			}
			m.AddParam(ps.Name, pt)
		}
		for _, a := range ms.TypeArgs {
			at, err := b.typ(a)
			if err != nil {
				return fmt.Errorf("method %s: %w", m.FullName(), err)
			}
			m.TypeArgs = append(m.TypeArgs, at)
		}
		if _, dup := b.fx.Methods[m.FullName()]; dup {
			return fmt.Errorf("method %s declared twice", m.FullName())
		}
		b.fx.Methods[m.FullName()] = m
	}
	return nil
}

func (b *builder) declareSubroutines(specs []SubSpec) error {
	for _, ss := range specs {
		if ss.Name == "" {
			return fmt.Errorf("subroutine without a name")
		}
		if _, dup := b.fx.Graph.Lookup(ss.Name); dup {
			return fmt.Errorf("subroutine %s declared twice", ss.Name)
		}
		kind, err := cfg.ParseKind(ss.Kind)
		if err != nil {
			return fmt.Errorf("subroutine %s: %w", ss.Name, err)
		}
		var m *metadata.Method
		if ss.Method != "" {
			if m, err = b.method(ss.Method); err != nil {
				return fmt.Errorf("subroutine %s: %w", ss.Name, err)
			}
		} else if kind == cfg.KindMethod {
			return fmt.Errorf("subroutine %s: method body needs a method", ss.Name)
		}
		sub := b.fx.Graph.NewSubroutine(kind, m)
		sub.Name = ss.Name
		sub.Delta = ss.Delta

		labels := map[string]*cfg.Block{"entry": sub.Entry, "exit": sub.Exit}
		for _, bs := range ss.Blocks {
			if _, ok := labels[bs.Label]; ok {
				continue
			}
			if bs.Label == "" {
				return fmt.Errorf("subroutine %s: block without a label", ss.Name)
			}
			labels[bs.Label] = sub.NewBlock(bs.Label)
		}
		b.labels[sub] = labels
	}
	return nil
}

func (b *builder) defineSubroutine(ss *SubSpec) error {
	sub, _ := b.fx.Graph.Lookup(ss.Name)
	labels := b.labels[sub]
	asm := &assembler{b: b, sub: sub, labels: labels}

	seen := make(map[string]bool)
	for _, bs := range ss.Blocks {
		if seen[bs.Label] {
			return fmt.Errorf("subroutine %s: block %s defined twice", ss.Name, bs.Label)
		}
		seen[bs.Label] = true
		blk := labels[bs.Label]
		blk.CatchHeader = bs.Catch || bs.Filter
		for i, line := range bs.Code {
			in, err := asm.assemble(blk, i, line)
			if err != nil {
				return fmt.Errorf("%s:%s[%d] %q: %w", ss.Name, bs.Label, i, line, err)
			}
			b.fx.Code.Append(blk, in)
		}
		if n := blk.Count; n > 0 {
			last := b.fx.Code.Block(blk)[n-1]
			switch last.Op {
			case il.OP_CALL, il.OP_CONSTRAINED_CALLVIRT:
				blk.Call = &cfg.CallSite{Method: last.Method, Virtual: last.Virtual || last.Op == il.OP_CONSTRAINED_CALLVIRT}
			case il.OP_NEWOBJ:
				blk.Call = &cfg.CallSite{Method: last.Method, NewObj: true}
			}
		}
		for _, to := range bs.Next {
			target, ok := labels[to]
			if !ok {
				return fmt.Errorf("%s:%s: unknown successor %q", ss.Name, bs.Label, to)
			}
			sub.AddSuccessor(blk, target)
		}
	}
	if err := asm.finish(); err != nil {
		return fmt.Errorf("subroutine %s: %w", ss.Name, err)
	}

	for _, bs := range ss.Blocks {
		from := labels[bs.Label]
		for _, es := range bs.Edges {
			if err := b.addEdge(sub, from, bs, es); err != nil {
				return fmt.Errorf("%s:%s->%s: %w", ss.Name, bs.Label, es.To, err)
			}
		}
	}
	return nil
}

func (b *builder) addEdge(sub *cfg.Subroutine, from *cfg.Block, bs BlockSpec, es EdgeSpec) error {
	if !slices.Contains(bs.Next, es.To) {
		return fmt.Errorf("edge subroutine on a missing edge")
	}
	to := b.labels[sub][es.To]
	tag, err := cfg.ParseTag(es.Tag)
	if err != nil {
		return err
	}
	nested, ok := b.fx.Graph.Lookup(es.Sub)
	if !ok {
		return fmt.Errorf("no subroutine %q", es.Sub)
	}
	switch tag {
	case cfg.TagBeforeCall, cfg.TagBeforeNewObj:
		if err := callOnly(to); err != nil {
			return err
		}
	case cfg.TagAfterCall, cfg.TagAfterNewObj:
		if from.Call == nil {
			return fmt.Errorf("block %s does not end in a call", from)
		}
	case cfg.TagOldManifest:
		if to.Call != nil {
			if err := callOnly(to); err != nil {
				return err
			}
		}
	}
	sub.AddEdgeSubroutine(from, to, tag, nested)
	return nil
}

// callOnly checks that contracts evaluated before b see the call operands on
// top of the stack
func callOnly(b *cfg.Block) error {
	if b.Call == nil {
		return fmt.Errorf("block %s does not end in a call", b)
	}
	if b.Count != 1 {
		return fmt.Errorf("call block %s must contain only the call", b)
	}
	return nil
}

// pairOld points the begin_old at begin to its end_old
func (b *builder) pairOld(begin, end cfg.Point) {
	code := b.fx.Code.Block(begin.Block)
	code[begin.Index].MatchBlock = end.Block
	code[begin.Index].MatchIndex = end.Index
}

func (b *builder) typ(name string) (*metadata.Type, error) {
	if pos, ok := strings.CutPrefix(name, "!!"); ok {
		return typeParam(name, pos, metadata.MethodTypeParam)
	}
	if pos, ok := strings.CutPrefix(name, "!"); ok {
		return typeParam(name, pos, metadata.TypeParam)
	}
	t, ok := b.fx.Types[name]
	if !ok {
		return nil, fmt.Errorf("unknown type %q", name)
	}
	return t, nil
}

func typeParam(name, pos string, kind metadata.TypeKind) (*metadata.Type, error) {
	var n int
	if _, err := fmt.Sscanf(pos, "%d", &n); err != nil {
		return nil, fmt.Errorf("bad type parameter %q", name)
	}
	return &metadata.Type{Name: name, Kind: kind, Position: n}, nil
}

func (b *builder) method(name string) (*metadata.Method, error) {
	m, ok := b.fx.Methods[name]
	if !ok {
		return nil, fmt.Errorf("unknown method %q", name)
	}
	return m, nil
}

func (b *builder) field(name string) (*metadata.Field, error) {
	f, ok := b.fx.Fields[name]
	if !ok {
		return nil, fmt.Errorf("unknown field %q", name)
	}
	return f, nil
}
