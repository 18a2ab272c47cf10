// Package metadata models the slice of type and method metadata the stack
// analysis needs: parameter lists, receivers, return types and the
// reference/value distinction used when boxing.
package metadata

import "fmt"

// TypeKind classifies a type for boxing purposes
type TypeKind uint8

const (
	ValueType       TypeKind = iota // int32, structs, enums
	ReferenceType                   // classes, interfaces, arrays, strings
	TypeParam                       // type parameter of the declaring type
	MethodTypeParam                 // type parameter of the method itself
)

// Type is a (possibly generic) type reference
type Type struct {
	Name string
	Kind TypeKind

	// Position is the type parameter position for TypeParam and MethodTypeParam
	Position int

	// Args holds the instantiation of a generic type
	Args []*Type
}

func (t *Type) String() string {
	if t == nil {
		return "void"
	}
	return t.Name
}

// Field is a static or instance field
type Field struct {
	Name      string
	Type      *Type
	Static    bool
	Declaring *Type
}

func (f *Field) String() string {
	if f.Declaring != nil {
		return f.Declaring.Name + "::" + f.Name
	}
	return f.Name
}

// Param is a method parameter. The receiver of an instance method is a
// synthesized Param with Ordinal -1.
type Param struct {
	Name    string
	Type    *Type
	Ordinal int
	Method  *Method
}

func (p *Param) String() string {
	return p.Name
}

// Method describes a callable member
type Method struct {
	Name      string
	Declaring *Type
	Params    []*Param
	Result    *Type // nil means void
	Static    bool
	Ctor      bool
	Virtual   bool
	TypeArgs  []*Type

	this *Param
}

// AddParam appends a declared parameter and returns it
func (m *Method) AddParam(name string, t *Type) *Param {
	p := &Param{Name: name, Type: t, Ordinal: len(m.Params), Method: m}
	m.Params = append(m.Params, p)
	return p
}

// FullName returns Declaring::Name
func (m *Method) FullName() string {
	if m.Declaring == nil {
		return m.Name
	}
	return m.Declaring.Name + "::" + m.Name
}

func (m *Method) String() string {
	return m.FullName()
}

// Signature is the call-site signature of an indirect call
type Signature struct {
	Result   *Type
	Params   []*Type
	Instance bool
}

// Provider answers the metadata questions asked by the analysis
type Provider interface {
	Parameters(m *Method) []*Param
	This(m *Method) *Param
	ArgumentIndex(p *Param) int
	DeclaringMethod(p *Param) *Method
	DeclaringType(m *Method) *Type
	IsStatic(m *Method) bool
	IsConstructor(m *Method) bool
	IsVoid(m *Method) bool
	ReturnType(m *Method) *Type
	IsReferenceType(t *Type) bool
	Specialize(t *Type, in *Method) *Type
	Equal(a, b *Method) bool
}

// Model is the Provider over the in-memory structs of this package
type Model struct{}

var _ Provider = Model{}

func (Model) Parameters(m *Method) []*Param { return m.Params }

// This returns the receiver parameter of m, synthesizing it on first use.
// Static methods have no receiver.
func (Model) This(m *Method) *Param {
	if m.Static {
		return nil
	}
	if m.this == nil {
		m.this = &Param{Name: "this", Type: m.Declaring, Ordinal: -1, Method: m}
	}
	return m.this
}

// ArgumentIndex is the position of p in the argument list: the receiver of an
// instance method is argument 0 and declared parameters follow it.
func (Model) ArgumentIndex(p *Param) int {
	if p.Ordinal < 0 {
		return 0
	}
	if p.Method != nil && !p.Method.Static {
		return p.Ordinal + 1
	}
	return p.Ordinal
}

func (Model) DeclaringMethod(p *Param) *Method { return p.Method }

func (Model) DeclaringType(m *Method) *Type { return m.Declaring }

func (Model) IsStatic(m *Method) bool { return m.Static }

func (Model) IsConstructor(m *Method) bool { return m.Ctor }

func (Model) IsVoid(m *Method) bool { return m.Result == nil || m.Ctor }

func (Model) ReturnType(m *Method) *Type { return m.Result }

func (Model) IsReferenceType(t *Type) bool {
	return t != nil && t.Kind == ReferenceType
}

// Specialize substitutes type parameters using the instantiation visible from
// method in. Unresolvable parameters are returned unchanged.
func (Model) Specialize(t *Type, in *Method) *Type {
	if t == nil || in == nil {
		return t
	}
	switch t.Kind {
	case TypeParam:
		if in.Declaring != nil && t.Position < len(in.Declaring.Args) {
			return in.Declaring.Args[t.Position]
		}
	case MethodTypeParam:
		if t.Position < len(in.TypeArgs) {
			return in.TypeArgs[t.Position]
		}
	}
	return t
}

func (Model) Equal(a, b *Method) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return a.FullName() == b.FullName() && len(a.Params) == len(b.Params) && a.Static == b.Static
}

// ArgumentCount is the number of stack operands a call to m consumes,
// including the receiver when m is an instance method and newObj is false.
func ArgumentCount(p Provider, m *Method, newObj bool) int {
	n := len(p.Parameters(m))
	if !newObj && !p.IsStatic(m) {
		n++
	}
	return n
}

// ParamAt maps an argument index back to the parameter of m
func ParamAt(p Provider, m *Method, index int) (*Param, error) {
	if !p.IsStatic(m) {
		if index == 0 {
			return p.This(m), nil
		}
		index--
	}
	params := p.Parameters(m)
	if index < 0 || index >= len(params) {
		return nil, fmt.Errorf("method %s has no argument %d", m, index)
	}
	return params[index], nil
}
