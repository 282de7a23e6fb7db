// Package protorender turns recovered protobuf descriptors back into
// readable .proto schema files. Output is a pure function of the input:
// rendering the same set twice yields byte-identical files.
package protorender

import (
	"bytes"
	"fmt"
	"math"
	"path"
	"strconv"
	"strings"

	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/types/descriptorpb"
)

// File is a rendered schema file.
type File struct {
	Path    string
	Content []byte
}

// Render renders every file of set, in input order. Files that map to the
// same path receive a numeric suffix (_2, _3, ...).
func Render(set *descriptorpb.FileDescriptorSet) []File {
	files := make([]File, 0, len(set.GetFile()))
	used := make(map[string]bool, len(set.GetFile()))
	for _, fd := range set.GetFile() {
		f := RenderFile(fd)
		f.Path = uniquePath(f.Path, used)
		files = append(files, f)
	}
	return files
}

// RenderFile renders a single file descriptor.
func RenderFile(fd *descriptorpb.FileDescriptorProto) File {
	p := &printer{fd: fd, blockStart: true}
	switch fd.GetSyntax() {
	case "proto3":
		p.dialect = dialectProto3
	case "editions":
		p.dialect = dialectEditions
	}
	p.file()
	return File{Path: Path(fd), Content: p.buf.Bytes()}
}

// Path derives the output path of fd: the package as a directory plus the
// base of the declared file name, or a name inferred from the first
// message, enum or service.
func Path(fd *descriptorpb.FileDescriptorProto) string {
	base := path.Base(fd.GetName())
	if fd.GetName() == "" || base == "." || base == "/" {
		base = inferName(fd)
	}
	return path.Join(strings.ReplaceAll(fd.GetPackage(), ".", "/"), base)
}

func inferName(fd *descriptorpb.FileDescriptorProto) string {
	var name string
	switch {
	case len(fd.GetMessageType()) != 0:
		name = fd.GetMessageType()[0].GetName()
	case len(fd.GetEnumType()) != 0:
		name = fd.GetEnumType()[0].GetName()
	case len(fd.GetService()) != 0:
		name = fd.GetService()[0].GetName()
	}
	if name == "" {
		name = "unnamed"
	}
	return NormalizeName(name) + ".proto"
}

func uniquePath(p string, used map[string]bool) string {
	if !used[p] {
		used[p] = true
		return p
	}

	ext := path.Ext(p)
	stem := strings.TrimSuffix(p, ext)
	for n := 2; ; n++ {
		if q := stem + "_" + strconv.Itoa(n) + ext; !used[q] {
			used[q] = true
			return q
		}
	}
}

// --------------------------------------------------------------------

const maxFieldNumber = int32(protowire.MaxValidNumber)

type dialect uint8

const (
	dialectProto2 dialect = iota
	dialectProto3
	dialectEditions
)

type printer struct {
	buf     bytes.Buffer
	fd      *descriptorpb.FileDescriptorProto
	dialect dialect

	depth      int
	blockStart bool
	pendingGap bool
}

func (p *printer) linef(format string, args ...interface{}) {
	if p.pendingGap {
		p.buf.WriteByte('\n')
		p.pendingGap = false
	}
	for i := 0; i < p.depth; i++ {
		p.buf.WriteString("  ")
	}
	fmt.Fprintf(&p.buf, format, args...)
	p.buf.WriteByte('\n')
	p.blockStart = false
}

// gap requests a blank line before the next line of the current block.
func (p *printer) gap() {
	if !p.blockStart {
		p.pendingGap = true
	}
}

// open starts a block and returns a mark for close.
func (p *printer) open(header string) int {
	p.linef("%s {", header)
	p.depth++
	p.blockStart = true
	return p.buf.Len()
}

// close ends a block; blocks without content collapse to "{}".
func (p *printer) close(mark int) {
	p.depth--
	p.pendingGap = false
	if p.buf.Len() == mark {
		p.buf.Truncate(mark - 1)
		p.buf.WriteString("}\n")
		p.blockStart = false
		return
	}
	p.linef("}")
}

func (p *printer) file() {
	fd := p.fd

	switch p.dialect {
	case dialectEditions:
		p.linef("edition = %q;", strings.TrimPrefix(fd.GetEdition().String(), "EDITION_"))
	case dialectProto3:
		p.linef(`syntax = "proto3";`)
	default:
		p.linef(`syntax = "proto2";`)
	}

	if pkg := fd.GetPackage(); pkg != "" {
		p.gap()
		p.linef("package %s;", pkg)
	}

	p.gap()
	for i, dep := range fd.GetDependency() {
		switch {
		case containsIndex(fd.GetPublicDependency(), i):
			p.linef("import public %q;", dep)
		case containsIndex(fd.GetWeakDependency(), i):
			p.linef("import weak %q;", dep)
		default:
			p.linef("import %q;", dep)
		}
	}

	p.gap()
	p.fileOptions(fd.GetOptions())

	for _, e := range fd.GetEnumType() {
		p.gap()
		p.enum(e)
	}

	skip := groupTypes(fd.GetExtension())
	for _, m := range fd.GetMessageType() {
		if !skip[m.GetName()] {
			p.gap()
			p.message(m)
		}
	}

	p.extends(fd.GetExtension(), fd.GetMessageType())

	for _, s := range fd.GetService() {
		p.gap()
		p.service(s)
	}
}

func (p *printer) fileOptions(o *descriptorpb.FileOptions) {
	if o == nil {
		return
	}

	str := func(name string, v *string) {
		if v != nil {
			p.linef("option %s = %s;", name, strconv.Quote(*v))
		}
	}
	str("java_package", o.JavaPackage)
	str("java_outer_classname", o.JavaOuterClassname)
	if o.JavaMultipleFiles != nil {
		p.linef("option java_multiple_files = %t;", o.GetJavaMultipleFiles())
	}
	str("go_package", o.GoPackage)
	str("csharp_namespace", o.CsharpNamespace)
	str("objc_class_prefix", o.ObjcClassPrefix)
	str("php_namespace", o.PhpNamespace)
	str("ruby_package", o.RubyPackage)
	str("swift_prefix", o.SwiftPrefix)
}

func (p *printer) enum(e *descriptorpb.EnumDescriptorProto) {
	mark := p.open("enum " + e.GetName())

	if e.GetOptions().GetAllowAlias() {
		p.linef("option allow_alias = true;")
	}
	if e.GetOptions().GetDeprecated() {
		p.linef("option deprecated = true;")
	}
	for _, v := range e.GetValue() {
		if v.GetOptions().GetDeprecated() {
			p.linef("%s = %d [deprecated = true];", v.GetName(), v.GetNumber())
		} else {
			p.linef("%s = %d;", v.GetName(), v.GetNumber())
		}
	}

	var ranges [][2]int32
	for _, r := range e.GetReservedRange() {
		ranges = append(ranges, [2]int32{r.GetStart(), r.GetEnd()})
	}
	p.reserved(ranges, math.MaxInt32, e.GetReservedName())

	p.close(mark)
}

func (p *printer) message(m *descriptorpb.DescriptorProto) {
	mark := p.open("message " + m.GetName())
	p.messageBody(m)
	p.close(mark)
}

func (p *printer) messageBody(m *descriptorpb.DescriptorProto) {
	if m.GetOptions().GetDeprecated() {
		p.linef("option deprecated = true;")
	}

	for _, e := range m.GetEnumType() {
		p.gap()
		p.enum(e)
	}

	skip := groupTypes(m.GetField())
	for k, v := range groupTypes(m.GetExtension()) {
		skip[k] = v
	}
	for _, n := range m.GetNestedType() {
		if !n.GetOptions().GetMapEntry() && !skip[n.GetName()] {
			p.gap()
			p.message(n)
		}
	}

	p.gap()
	p.fields(m)

	p.gap()
	if rs := m.GetExtensionRange(); len(rs) != 0 {
		ranges := make([][2]int32, 0, len(rs))
		for _, r := range rs {
			ranges = append(ranges, [2]int32{r.GetStart(), r.GetEnd() - 1})
		}
		p.linef("extensions %s;", formatRanges(ranges, maxFieldNumber))
	}

	var ranges [][2]int32
	for _, r := range m.GetReservedRange() {
		ranges = append(ranges, [2]int32{r.GetStart(), r.GetEnd() - 1})
	}
	p.reserved(ranges, maxFieldNumber, m.GetReservedName())

	p.extends(m.GetExtension(), m.GetNestedType())
}

// fields renders the fields of m, gathering members of each real oneof
// into a block at the position of its first member.
func (p *printer) fields(m *descriptorpb.DescriptorProto) {
	decls := m.GetOneofDecl()
	oneof := func(f *descriptorpb.FieldDescriptorProto) (int32, bool) {
		if f.OneofIndex == nil || f.GetProto3Optional() {
			return 0, false
		}
		idx := f.GetOneofIndex()
		return idx, idx >= 0 && int(idx) < len(decls)
	}

	names := fieldNames(m.GetField())
	done := make(map[int32]bool)
	for _, f := range m.GetField() {
		idx, ok := oneof(f)
		if !ok {
			p.field(f, names[f], m.GetNestedType(), false, false)
			continue
		}
		if done[idx] {
			continue
		}
		done[idx] = true

		mark := p.open("oneof " + decls[idx].GetName())
		for _, g := range m.GetField() {
			if gi, ok := oneof(g); ok && gi == idx {
				p.field(g, names[g], m.GetNestedType(), true, false)
			}
		}
		p.close(mark)
	}
}

func (p *printer) field(f *descriptorpb.FieldDescriptorProto, name string, scope []*descriptorpb.DescriptorProto, inOneof, isExt bool) {
	if f.GetType() == descriptorpb.FieldDescriptorProto_TYPE_GROUP {
		if g := findNested(scope, f.GetTypeName()); g != nil {
			header := fmt.Sprintf("%sgroup %s = %d%s", p.label(f, inOneof), g.GetName(), f.GetNumber(), p.fieldOptions(f, "", isExt))
			mark := p.open(header)
			p.messageBody(g)
			p.close(mark)
			return
		}
	}

	if entry := mapEntry(scope, f); entry != nil {
		var key, val *descriptorpb.FieldDescriptorProto
		for _, ef := range entry.GetField() {
			switch ef.GetNumber() {
			case 1:
				key = ef
			case 2:
				val = ef
			}
		}
		if key != nil && val != nil {
			p.linef("map<%s, %s> %s = %d%s;", p.fieldType(key), p.fieldType(val), name, f.GetNumber(), p.fieldOptions(f, name, isExt))
			return
		}
	}

	p.linef("%s%s %s = %d%s;", p.label(f, inOneof), p.fieldType(f), name, f.GetNumber(), p.fieldOptions(f, name, isExt))
}

func (p *printer) label(f *descriptorpb.FieldDescriptorProto, inOneof bool) string {
	if inOneof {
		return ""
	}

	switch f.GetLabel() {
	case descriptorpb.FieldDescriptorProto_LABEL_REPEATED:
		return "repeated "
	case descriptorpb.FieldDescriptorProto_LABEL_REQUIRED:
		if p.dialect == dialectProto2 {
			return "required "
		}
	}

	if p.dialect == dialectProto2 || f.GetProto3Optional() {
		return "optional "
	}
	return ""
}

func (p *printer) fieldType(f *descriptorpb.FieldDescriptorProto) string {
	switch f.GetType() {
	case descriptorpb.FieldDescriptorProto_TYPE_MESSAGE,
		descriptorpb.FieldDescriptorProto_TYPE_ENUM,
		descriptorpb.FieldDescriptorProto_TYPE_GROUP:
		return p.typeRef(f.GetTypeName())
	}
	if f.Type == nil && f.TypeName != nil {
		return p.typeRef(f.GetTypeName())
	}
	return strings.ToLower(strings.TrimPrefix(f.GetType().String(), "TYPE_"))
}

func (p *printer) fieldOptions(f *descriptorpb.FieldDescriptorProto, name string, isExt bool) string {
	var opts []string
	if f.DefaultValue != nil {
		opts = append(opts, "default = "+defaultValue(f))
	}
	if o := f.GetOptions(); o != nil {
		if o.Packed != nil {
			opts = append(opts, "packed = "+strconv.FormatBool(o.GetPacked()))
		}
		if o.GetDeprecated() {
			opts = append(opts, "deprecated = true")
		}
	}
	if !isExt && name != "" && f.JsonName != nil && f.GetJsonName() != jsonName(name) {
		opts = append(opts, "json_name = "+strconv.Quote(f.GetJsonName()))
	}

	if len(opts) == 0 {
		return ""
	}
	return " [" + strings.Join(opts, ", ") + "]"
}

func defaultValue(f *descriptorpb.FieldDescriptorProto) string {
	switch f.GetType() {
	case descriptorpb.FieldDescriptorProto_TYPE_STRING:
		return strconv.Quote(f.GetDefaultValue())
	case descriptorpb.FieldDescriptorProto_TYPE_BYTES:
		return `"` + f.GetDefaultValue() + `"` // already C-escaped
	}
	return f.GetDefaultValue()
}

// typeRef strips the leading dot and the file's own package.
func (p *printer) typeRef(name string) string {
	name = strings.TrimPrefix(name, ".")
	if pkg := p.fd.GetPackage(); pkg != "" && strings.HasPrefix(name, pkg+".") {
		name = name[len(pkg)+1:]
	}
	return name
}

func (p *printer) reserved(ranges [][2]int32, limit int32, names []string) {
	if len(ranges) != 0 {
		p.linef("reserved %s;", formatRanges(ranges, limit))
	}
	if len(names) == 0 {
		return
	}

	quoted := make([]string, 0, len(names))
	for _, n := range names {
		if p.dialect == dialectEditions {
			quoted = append(quoted, n)
		} else {
			quoted = append(quoted, strconv.Quote(n))
		}
	}
	p.linef("reserved %s;", strings.Join(quoted, ", "))
}

// extends renders extension fields grouped by extendee, in order of first
// appearance.
func (p *printer) extends(exts []*descriptorpb.FieldDescriptorProto, scope []*descriptorpb.DescriptorProto) {
	names := fieldNames(exts)
	var order []string
	groups := make(map[string][]*descriptorpb.FieldDescriptorProto)
	for _, f := range exts {
		e := f.GetExtendee()
		if _, ok := groups[e]; !ok {
			order = append(order, e)
		}
		groups[e] = append(groups[e], f)
	}

	for _, e := range order {
		p.gap()
		mark := p.open("extend " + p.typeRef(e))
		for _, f := range groups[e] {
			p.field(f, names[f], scope, false, true)
		}
		p.close(mark)
	}
}

func (p *printer) service(s *descriptorpb.ServiceDescriptorProto) {
	mark := p.open("service " + s.GetName())

	if s.GetOptions().GetDeprecated() {
		p.linef("option deprecated = true;")
	}
	for _, m := range s.GetMethod() {
		in, out := p.typeRef(m.GetInputType()), p.typeRef(m.GetOutputType())
		if m.GetClientStreaming() {
			in = "stream " + in
		}
		if m.GetServerStreaming() {
			out = "stream " + out
		}

		sig := fmt.Sprintf("rpc %s(%s) returns (%s)", m.GetName(), in, out)
		if m.GetOptions().GetDeprecated() {
			mm := p.open(sig)
			p.linef("option deprecated = true;")
			p.close(mm)
		} else {
			p.linef("%s;", sig)
		}
	}

	p.close(mark)
}

// --------------------------------------------------------------------

func containsIndex(idx []int32, i int) bool {
	for _, x := range idx {
		if int(x) == i {
			return true
		}
	}
	return false
}

// groupTypes returns the nested type names consumed by group fields.
func groupTypes(fields []*descriptorpb.FieldDescriptorProto) map[string]bool {
	res := make(map[string]bool)
	for _, f := range fields {
		if f.GetType() == descriptorpb.FieldDescriptorProto_TYPE_GROUP {
			res[baseName(f.GetTypeName())] = true
		}
	}
	return res
}

func findNested(scope []*descriptorpb.DescriptorProto, typeName string) *descriptorpb.DescriptorProto {
	base := baseName(typeName)
	for _, d := range scope {
		if d.GetName() == base {
			return d
		}
	}
	return nil
}

func mapEntry(scope []*descriptorpb.DescriptorProto, f *descriptorpb.FieldDescriptorProto) *descriptorpb.DescriptorProto {
	if f.GetLabel() != descriptorpb.FieldDescriptorProto_LABEL_REPEATED || f.GetType() != descriptorpb.FieldDescriptorProto_TYPE_MESSAGE {
		return nil
	}
	if d := findNested(scope, f.GetTypeName()); d != nil && d.GetOptions().GetMapEntry() {
		return d
	}
	return nil
}

func baseName(typeName string) string {
	return typeName[strings.LastIndexByte(typeName, '.')+1:]
}

// formatRanges formats inclusive ranges, e.g. "2, 9 to 11, 100 to max".
func formatRanges(ranges [][2]int32, limit int32) string {
	parts := make([]string, 0, len(ranges))
	for _, r := range ranges {
		switch {
		case r[0] == r[1]:
			parts = append(parts, strconv.Itoa(int(r[0])))
		case r[1] >= limit:
			parts = append(parts, strconv.Itoa(int(r[0]))+" to max")
		default:
			parts = append(parts, strconv.Itoa(int(r[0]))+" to "+strconv.Itoa(int(r[1])))
		}
	}
	return strings.Join(parts, ", ")
}
