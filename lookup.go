package dexfile

import "bytes"

// Semantic lookups over the sorted identifier pools. All of them binary
// search the on-disk ordering the format guarantees: strings by raw
// MUTF-8 bytes, types by descriptor string index, fields and methods by
// their (class, name, type/proto) tuples, protos by return type then
// parameter sequence. A miss is an absent result, never an error.

// FindStringID locates the string with exactly the given MUTF-8 bytes.
// Returns nil when the container holds no such string.
func (d *DexFile) FindStringID(s []byte) (*StringID, error) {
	lo, hi := int64(0), int64(d.header.StringIDsSize)-1
	for lo <= hi {
		mid := (lo + hi) / 2
		id, err := d.StringID(uint32(mid))
		if err != nil {
			return nil, err
		}
		data, _, err := d.StringData(id)
		if err != nil {
			return nil, err
		}
		switch c := bytes.Compare(data, s); {
		case c < 0:
			lo = mid + 1
		case c > 0:
			hi = mid - 1
		default:
			return &id, nil
		}
	}
	return nil, nil
}

// FindTypeID locates the type whose descriptor is the string at
// stringIdx. Returns nil when no type names that string.
func (d *DexFile) FindTypeID(stringIdx uint32) (*TypeID, error) {
	lo, hi := int64(0), int64(d.header.TypeIDsSize)-1
	for lo <= hi {
		mid := (lo + hi) / 2
		id, err := d.TypeID(uint32(mid))
		if err != nil {
			return nil, err
		}
		switch {
		case id.DescriptorIndex < stringIdx:
			lo = mid + 1
		case id.DescriptorIndex > stringIdx:
			hi = mid - 1
		default:
			return &id, nil
		}
	}
	return nil, nil
}

// FindFieldID locates a field by declaring class, name and type.
// Returns nil when the container defines no such field.
func (d *DexFile) FindFieldID(declaringClass TypeID, name StringID, fieldType TypeID) (*FieldID, error) {
	lo, hi := int64(0), int64(d.header.FieldIDsSize)-1
	for lo <= hi {
		mid := (lo + hi) / 2
		f, err := d.FieldID(uint32(mid))
		if err != nil {
			return nil, err
		}
		c := compareU32(uint32(f.ClassIndex), declaringClass.Index)
		if c == 0 {
			c = compareU32(f.NameIndex, name.Index)
		}
		if c == 0 {
			c = compareU32(uint32(f.TypeIndex), fieldType.Index)
		}
		switch {
		case c < 0:
			lo = mid + 1
		case c > 0:
			hi = mid - 1
		default:
			return &f, nil
		}
	}
	return nil, nil
}

// FindMethodID locates a method by declaring class, name and prototype.
// Returns nil when the container defines no such method.
func (d *DexFile) FindMethodID(declaringClass TypeID, name StringID, proto ProtoID) (*MethodID, error) {
	lo, hi := int64(0), int64(d.header.MethodIDsSize)-1
	for lo <= hi {
		mid := (lo + hi) / 2
		m, err := d.MethodID(uint32(mid))
		if err != nil {
			return nil, err
		}
		c := compareU32(uint32(m.ClassIndex), declaringClass.Index)
		if c == 0 {
			c = compareU32(m.NameIndex, name.Index)
		}
		if c == 0 {
			c = compareU32(uint32(m.ProtoIndex), proto.Index)
		}
		switch {
		case c < 0:
			lo = mid + 1
		case c > 0:
			hi = mid - 1
		default:
			return &m, nil
		}
	}
	return nil, nil
}

// FindProtoID locates a prototype by return type index and parameter
// type index sequence, using the canonical ordering: return type first,
// then the parameter sequence lexicographically. Returns nil when no
// prototype matches.
func (d *DexFile) FindProtoID(returnTypeIdx uint16, paramTypeIdxs []uint16) (*ProtoID, error) {
	lo, hi := int64(0), int64(d.header.ProtoIDsSize)-1
	for lo <= hi {
		mid := (lo + hi) / 2
		p, err := d.ProtoID(uint32(mid))
		if err != nil {
			return nil, err
		}
		c := compareU32(uint32(p.ReturnTypeIndex), uint32(returnTypeIdx))
		if c == 0 {
			c, err = d.compareProtoParams(p, paramTypeIdxs)
			if err != nil {
				return nil, err
			}
		}
		switch {
		case c < 0:
			lo = mid + 1
		case c > 0:
			hi = mid - 1
		default:
			return &p, nil
		}
	}
	return nil, nil
}

// compareProtoParams orders p's parameter list against the given index
// sequence.
func (d *DexFile) compareProtoParams(p ProtoID, want []uint16) (int, error) {
	list, err := d.ProtoParameters(p)
	if err != nil {
		return 0, err
	}
	var n uint32
	if list != nil {
		n = list.Size()
	}
	for i := uint32(0); i < n && i < uint32(len(want)); i++ {
		got, err := list.TypeIndex(i)
		if err != nil {
			return 0, err
		}
		if c := compareU32(uint32(got), uint32(want[i])); c != 0 {
			return c, nil
		}
	}
	return compareU32(n, uint32(len(want))), nil
}

// CreateTypeList resolves a method signature such as
// "(ILjava/lang/Object;)V" into the container's type indices. The
// second return holds the parameter indices in order. ok is false when
// the signature is malformed or names a type the container lacks.
func (d *DexFile) CreateTypeList(signature string) (returnTypeIdx uint16, paramTypeIdxs []uint16, ok bool) {
	if len(signature) == 0 || signature[0] != '(' {
		return 0, nil, false
	}
	pos := 1
	sawClose := false
	for pos < len(signature) {
		if signature[pos] == ')' {
			sawClose = true
			pos++
			continue
		}
		start := pos
		for pos < len(signature) && signature[pos] == '[' {
			pos++
		}
		if pos >= len(signature) {
			return 0, nil, false
		}
		if signature[pos] == 'L' {
			for pos < len(signature) && signature[pos] != ';' {
				pos++
			}
			if pos >= len(signature) {
				return 0, nil, false
			}
		}
		pos++
		idx, found := d.typeIndexForDescriptor(signature[start:pos])
		if !found {
			return 0, nil, false
		}
		if sawClose {
			if pos != len(signature) {
				return 0, nil, false
			}
			return idx, paramTypeIdxs, true
		}
		paramTypeIdxs = append(paramTypeIdxs, idx)
	}
	return 0, nil, false
}

func (d *DexFile) typeIndexForDescriptor(descriptor string) (uint16, bool) {
	sid, err := d.FindStringID([]byte(descriptor))
	if err != nil || sid == nil {
		return 0, false
	}
	tid, err := d.FindTypeID(sid.Index)
	if err != nil || tid == nil {
		return 0, false
	}
	return uint16(tid.Index), true
}

// MethodSignature renders a prototype as a raw descriptor signature,
// e.g. "(ILjava/lang/Object;)V".
func (d *DexFile) MethodSignature(m MethodID) (string, error) {
	p, err := d.MethodPrototype(m)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	buf.WriteByte('(')
	it, err := d.Parameters(p)
	if err != nil {
		return "", err
	}
	for ; it.HasNext(); it.Next() {
		desc, err := it.Descriptor()
		if err != nil {
			return "", err
		}
		buf.Write(desc)
	}
	buf.WriteByte(')')
	ret, err := d.ReturnTypeDescriptor(p)
	if err != nil {
		return "", err
	}
	buf.Write(ret)
	return buf.String(), nil
}

func compareU32(a, b uint32) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
