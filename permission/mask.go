package permission

// Mask is a permission bitset. Its width is fixed by the Registry that
// produced it.
type Mask []uint64

// NewMask returns an empty mask able to hold bits [0, bits).
func NewMask(bits int) Mask {
	if bits <= 0 {
		return Mask{}
	}
	return make(Mask, (bits+63)/64)
}

func (m Mask) Has(bit int) bool {
	if bit < 0 || bit/64 >= len(m) {
		return false
	}
	return m[bit/64]&(1<<(uint(bit)%64)) != 0
}

func (m Mask) Set(bit int) {
	if bit < 0 || bit/64 >= len(m) {
		return
	}
	m[bit/64] |= 1 << (uint(bit) % 64)
}

func (m Mask) Clear(bit int) {
	if bit < 0 || bit/64 >= len(m) {
		return
	}
	m[bit/64] &^= 1 << (uint(bit) % 64)
}

// Union sets every bit of other in m. Bits beyond m's width are ignored.
func (m Mask) Union(other Mask) {
	for i := range m {
		if i >= len(other) {
			return
		}
		m[i] |= other[i]
	}
}

// Empty reports whether no bit is set.
func (m Mask) Empty() bool {
	for _, w := range m {
		if w != 0 {
			return false
		}
	}
	return true
}
