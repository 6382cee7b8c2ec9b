//go:build windows

package filesystem

import (
	"os"

	"golang.org/x/sys/windows"
)

// replaceFile 使用 MoveFileEx(REPLACE_EXISTING|WRITE_THROUGH) 替换 dest。
func replaceFile(tmpPath, dest string) error {
	from, err := windows.UTF16PtrFromString(tmpPath)
	if err != nil {
		return err
	}
	to, err := windows.UTF16PtrFromString(dest)
	if err != nil {
		return err
	}
	if err := windows.MoveFileEx(from, to, windows.MOVEFILE_REPLACE_EXISTING|windows.MOVEFILE_WRITE_THROUGH); err != nil {
		return &os.LinkError{Op: "replace", Old: tmpPath, New: dest, Err: err}
	}
	return nil
}

// syncDir 在 Windows 上为 no-op（目录无法 fsync）。
func syncDir(string) error { return nil }
