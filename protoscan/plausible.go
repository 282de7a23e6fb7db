package protoscan

import (
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"
)

// Plausible reports whether set looks like a real descriptor set rather
// than random bytes that happen to parse. It requires at least one file,
// at least one message, enum or service across the set, valid identifiers
// throughout and no unknown fields on the set or its files. Files that
// only declare extensions or only import others are accepted.
func Plausible(set *descriptorpb.FileDescriptorSet) bool {
	files := set.GetFile()
	if len(files) == 0 || len(set.ProtoReflect().GetUnknown()) != 0 {
		return false
	}

	decls := 0
	for _, fd := range files {
		if !plausibleFile(fd) {
			return false
		}
		decls += len(fd.GetMessageType()) + len(fd.GetEnumType()) + len(fd.GetService())
	}
	return decls != 0
}

func plausibleFile(fd *descriptorpb.FileDescriptorProto) bool {
	if len(fd.ProtoReflect().GetUnknown()) != 0 {
		return false
	}
	if pkg := fd.GetPackage(); pkg != "" && !protoreflect.FullName(pkg).IsValid() {
		return false
	}

	for _, m := range fd.GetMessageType() {
		if !plausibleMessage(m) {
			return false
		}
	}
	for _, e := range fd.GetEnumType() {
		if !plausibleEnum(e) {
			return false
		}
	}
	for _, sd := range fd.GetService() {
		if !validName(sd.GetName()) {
			return false
		}
		for _, md := range sd.GetMethod() {
			if !validName(md.GetName()) {
				return false
			}
		}
	}
	for _, f := range fd.GetExtension() {
		if !validName(f.GetName()) || f.GetExtendee() == "" {
			return false
		}
	}
	return true
}

func plausibleMessage(m *descriptorpb.DescriptorProto) bool {
	if !validName(m.GetName()) {
		return false
	}
	for _, f := range m.GetField() {
		if !validName(f.GetName()) {
			return false
		}
	}
	for _, f := range m.GetExtension() {
		if !validName(f.GetName()) {
			return false
		}
	}
	for _, o := range m.GetOneofDecl() {
		if !validName(o.GetName()) {
			return false
		}
	}
	for _, n := range m.GetNestedType() {
		if !plausibleMessage(n) {
			return false
		}
	}
	for _, e := range m.GetEnumType() {
		if !plausibleEnum(e) {
			return false
		}
	}
	return true
}

func plausibleEnum(e *descriptorpb.EnumDescriptorProto) bool {
	if !validName(e.GetName()) {
		return false
	}
	for _, v := range e.GetValue() {
		if !validName(v.GetName()) {
			return false
		}
	}
	return true
}

func validName(s string) bool {
	return protoreflect.Name(s).IsValid()
}
