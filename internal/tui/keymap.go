package tui

// Key binding constants used in handleKey.
const (
	KeyQuit      = "q"
	KeyQuitUpper = "Q"
	KeyEsc       = "esc"
	KeyCtrlC     = "ctrl+c"
	KeyTab       = "tab"
	KeyUp        = "up"
	KeyDown      = "down"
	KeyJ         = "j"
	KeyK         = "k"
	KeyPgUp      = "pgup"
	KeyPgDown    = "pgdown"
	KeyTop       = "g"
	KeyBottom    = "G"
)
