package console

// Theme defines semantic color mappings using ANSI color indices (0-15).
// The user's terminal theme determines the actual RGB values, so the
// console automatically matches any color scheme.
type Theme struct {
	Answer   int // streamed answer text
	Citation int // evidence entries
	Notice   int // safe-response advisory banner
	Error    int // error banners
	Muted    int // status lines, tool activity
}

// DefaultTheme returns the default ANSI color mapping.
func DefaultTheme() Theme {
	return Theme{
		Answer:   7,
		Citation: 4,
		Notice:   3,
		Error:    1,
		Muted:    8,
	}
}
