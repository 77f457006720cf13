package barcode

// baseMask maps a nucleotide letter to the set of bases it can stand for:
// bit0=A bit1=C bit2=G bit3=T. U is treated as T. Letters outside the IUPAC
// alphabet map to 0.
var baseMask [256]byte

func init() {
	set := func(c byte, bits byte) {
		baseMask[c] = bits
		baseMask[c+'a'-'A'] = bits
	}
	set('A', 1)
	set('C', 2)
	set('G', 4)
	set('T', 8)
	set('U', 8)
	set('R', 1|4)     // A/G
	set('Y', 2|8)     // C/T
	set('S', 2|4)     // C/G
	set('W', 1|8)     // A/T
	set('K', 4|8)     // G/T
	set('M', 1|2)     // A/C
	set('B', 2|4|8)   // not A
	set('D', 1|4|8)   // not C
	set('H', 1|2|8)   // not G
	set('V', 1|2|4)   // not T
	set('N', 1|2|4|8) // any
}

// BaseMatch reports whether a and b are equivalent under IUPAC rules: they
// are identical, or the set of bases one stands for contains the other's.
// Letters outside the alphabet only match themselves.
func BaseMatch(a, b byte) bool {
	if a == b {
		return true
	}
	ma, mb := baseMask[a], baseMask[b]
	if ma == 0 || mb == 0 {
		return false
	}
	both := ma & mb
	return both == ma || both == mb
}

// Valid reports whether every letter of s is an IUPAC nucleotide code.
func Valid(s string) bool {
	for i := 0; i < len(s); i++ {
		if baseMask[s[i]] == 0 {
			return false
		}
	}
	return true
}
