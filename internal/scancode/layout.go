package scancode

// Layout names a keyboard layout table.
type Layout string

// Supported layouts.
const (
	Latin    Layout = "en"
	Cyrillic Layout = "ru"
)

var latinBase = map[rune]Code{
	'`': 0x29, '1': 0x02, '2': 0x03, '3': 0x04, '4': 0x05, '5': 0x06,
	'6': 0x07, '7': 0x08, '8': 0x09, '9': 0x0A, '0': 0x0B, '-': 0x0C,
	'=': 0x0D,
	'q': 0x10, 'w': 0x11, 'e': 0x12, 'r': 0x13, 't': 0x14, 'y': 0x15,
	'u': 0x16, 'i': 0x17, 'o': 0x18, 'p': 0x19, '[': 0x1A, ']': 0x1B,
	'\\': 0x2B,
	'a': 0x1E, 's': 0x1F, 'd': 0x20, 'f': 0x21, 'g': 0x22, 'h': 0x23,
	'j': 0x24, 'k': 0x25, 'l': 0x26, ';': 0x27, '\'': 0x28,
	'z': 0x2C, 'x': 0x2D, 'c': 0x2E, 'v': 0x2F, 'b': 0x30, 'n': 0x31,
	'm': 0x32, ',': 0x33, '.': 0x34, '/': 0x35,
}

// latinShifted maps shifted symbols to the unshifted character on the same key.
var latinShifted = map[rune]rune{
	'~': '`', '!': '1', '@': '2', '#': '3', '$': '4', '%': '5',
	'^': '6', '&': '7', '*': '8', '(': '9', ')': '0', '_': '-',
	'+': '=', '{': '[', '}': ']', '|': '\\', ':': ';', '"': '\'',
	'<': ',', '>': '.', '?': '/',
}

var cyrillicExtra = map[rune]Code{
	'ё': 0x29,
	'й': 0x10, 'ц': 0x11, 'у': 0x12, 'к': 0x13, 'е': 0x14, 'н': 0x15,
	'г': 0x16, 'ш': 0x17, 'щ': 0x18, 'з': 0x19, 'х': 0x1A, 'ъ': 0x1B,
	'ф': 0x1E, 'ы': 0x1F, 'в': 0x20, 'а': 0x21, 'п': 0x22, 'р': 0x23,
	'о': 0x24, 'л': 0x25, 'д': 0x26, 'ж': 0x27, 'э': 0x28,
	'я': 0x2C, 'ч': 0x2D, 'с': 0x2E, 'м': 0x2F, 'и': 0x30, 'т': 0x31,
	'ь': 0x32, 'б': 0x33, 'ю': 0x34,
	'№': 0x04,
}

var tables = buildTables()

func buildTables() map[Layout]map[rune]Code {
	latin := make(map[rune]Code, len(latinBase)+len(latinShifted))
	for r, c := range latinBase {
		latin[r] = c
	}
	for sym, base := range latinShifted {
		latin[sym] = latinBase[base]
	}

	cyr := make(map[rune]Code, len(latin)+len(cyrillicExtra))
	for r, c := range latin {
		cyr[r] = c
	}
	for r, c := range cyrillicExtra {
		cyr[r] = c
	}
	// Under the Cyrillic layout both "." and "," sit on the slash key.
	cyr['.'] = Slash
	cyr[','] = Slash

	return map[Layout]map[rune]Code{
		Latin:    latin,
		Cyrillic: cyr,
	}
}

// Lookup returns the scan code for an already lower-cased character.
func (l Layout) Lookup(r rune) (Code, bool) {
	c, ok := tables[l][r]
	return c, ok
}
