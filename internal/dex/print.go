package dex

import (
	"fmt"
	"io"
	"strings"
)

// Dump writes a readable listing of the classes and their nested classes.
func Dump(w io.Writer, classes []*ClassDef) error {
	p := &printer{w: w}
	for _, c := range classes {
		p.class(c, 0)
		if p.err != nil {
			return p.err
		}
	}
	return p.err
}

type printer struct {
	w   io.Writer
	err error
}

func (p *printer) linef(indent int, format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, "%s%s\n", strings.Repeat("  ", indent), fmt.Sprintf(format, args...))
}

func (p *printer) class(c *ClassDef, indent int) {
	kind := "class"
	if c.IsInterface() {
		kind = "interface"
	}
	p.linef(indent, "%s %s [%s]", kind, c.Fullname(), c.Flags)
	if !c.Super.IsZero() {
		p.linef(indent+1, "extends %s", c.Super)
	}
	for _, i := range c.Interfaces {
		p.linef(indent+1, "implements %s", i)
	}
	for _, a := range c.Annotations {
		p.linef(indent+1, "@%s", FormatAnnotation(a))
	}
	for _, f := range c.Fields {
		if f.Value != nil {
			p.linef(indent+1, "field %s %s [%s] = %s", f.Name, f.Type.Descriptor(), f.Flags, formatValue(f.Value))
		} else {
			p.linef(indent+1, "field %s %s [%s]", f.Name, f.Type.Descriptor(), f.Flags)
		}
	}
	for _, m := range c.Methods {
		extra := ""
		if m.NewSlot {
			extra = " newslot"
		}
		p.linef(indent+1, "method %s%s [%s]%s", m.Name, m.Proto.Signature(), m.Flags, extra)
		for _, a := range m.Annotations {
			p.linef(indent+2, "@%s", FormatAnnotation(a))
		}
		if m.Body != nil {
			for _, line := range strings.Split(strings.TrimRight(m.Body.String(), "\n"), "\n") {
				p.linef(indent+2, "%s", line)
			}
		}
	}
	for _, ic := range c.InnerClasses {
		p.class(ic, indent+1)
	}
}

// FormatAnnotation renders an annotation as Type(name=value, ...).
func FormatAnnotation(a *Annotation) string {
	parts := make([]string, len(a.Arguments))
	for i, arg := range a.Arguments {
		parts[i] = arg.Name + "=" + formatValue(arg.Value)
	}
	return fmt.Sprintf("%s(%s) %s", a.Type, strings.Join(parts, ", "), a.Visibility)
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return fmt.Sprintf("%q", x)
	case TypeRef:
		return x.Descriptor()
	case EnumValue:
		return x.Field.String()
	case *Annotation:
		return "@" + FormatAnnotation(x)
	case []any:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = formatValue(e)
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
	return fmt.Sprint(v)
}
