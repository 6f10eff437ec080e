package keypad

// Flash tracks the short highlight shown on a key after it is pressed. It
// counts update ticks and carries no calculator state.
type Flash struct {
	name  string
	ticks int
}

// Press highlights key name for the given number of ticks, replacing any
// highlight in progress.
func (f *Flash) Press(name string, ticks int) {
	f.name, f.ticks = name, ticks
}

// Tick advances the highlight by one update.
func (f *Flash) Tick() {
	if f.ticks > 0 {
		f.ticks--
	}
	if f.ticks == 0 {
		f.name = ""
	}
}

// Active reports whether key name is highlighted.
func (f *Flash) Active(name string) bool {
	return f.ticks > 0 && f.name == name
}
