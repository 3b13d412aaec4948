package model

// ModuleRef is an unresolved reference to a directory by name.
type ModuleRef struct {
	base
	Name string
}

// NewModuleRef returns a module reference.
func NewModuleRef(name string) *ModuleRef {
	return &ModuleRef{base: base{id: "module:" + name}, Name: name}
}

func (m *ModuleRef) Kind() Kind  { return KindModule }
func (m *ModuleRef) Key() string { return fold(m.Name) }

// AssemblyRef is an unresolved reference to a build output by file name.
type AssemblyRef struct {
	base
	Name string
}

// NewAssemblyRef returns an assembly reference.
func NewAssemblyRef(name string) *AssemblyRef {
	return &AssemblyRef{base: base{id: "assembly:" + name}, Name: name}
}

func (a *AssemblyRef) Kind() Kind  { return KindAssembly }
func (a *AssemblyRef) Key() string { return fold(a.Name) }
