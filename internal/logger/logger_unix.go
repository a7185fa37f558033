//go:build darwin || linux
// +build darwin linux

package logger

import (
	"os"

	"golang.org/x/sys/unix"
)

// GetTerminalInfo reports whether file is a TTY and, if so, its width, by
// asking the kernel directly rather than shelling out to "tput" or reading
// $COLUMNS (which goes stale once the user resizes their terminal).
func GetTerminalInfo(file *os.File) (info TerminalInfo) {
	fd := int(file.Fd())

	if w, err := unix.IoctlGetWinsize(fd, unix.TIOCGWINSZ); err == nil {
		info.IsTTY = true
		info.Width = int(w.Col)
		info.Height = int(w.Row)
	}

	return
}

func writeStringWithColor(file *os.File, text string) {
	file.WriteString(text)
}
