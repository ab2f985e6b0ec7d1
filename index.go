package dexfile

// The descriptor index maps raw class descriptor bytes to class_def
// indices. It is built at most once per container; the sync.Once keeps
// concurrent first lookups to a single builder, and later readers only
// ever observe the completed map.

func (d *DexFile) buildClassIndex() {
	index := make(map[string]uint32, d.header.ClassDefsSize)
	for i := uint32(0); i < d.header.ClassDefsSize; i++ {
		def, err := d.ClassDef(i)
		if err != nil {
			d.indexErr = err
			return
		}
		desc, err := d.ClassDescriptor(def)
		if err != nil {
			d.indexErr = err
			return
		}
		if _, dup := index[string(desc)]; !dup {
			index[string(desc)] = i
		}
	}
	d.classIndex = index
}

// FindClassDefIndex locates the class_def index defining the class with
// the given raw descriptor bytes. The second result is false on a miss.
func (d *DexFile) FindClassDefIndex(descriptor []byte) (uint32, bool, error) {
	d.indexOnce.Do(d.buildClassIndex)
	if d.indexErr != nil {
		return 0, false, d.indexErr
	}
	idx, ok := d.classIndex[string(descriptor)]
	return idx, ok, nil
}

// FindClassDef locates the class definition with the given raw
// descriptor bytes. Returns nil when the container defines no such
// class.
func (d *DexFile) FindClassDef(descriptor []byte) (*ClassDef, error) {
	idx, ok, err := d.FindClassDefIndex(descriptor)
	if err != nil || !ok {
		return nil, err
	}
	def, err := d.ClassDef(idx)
	if err != nil {
		return nil, err
	}
	return &def, nil
}
