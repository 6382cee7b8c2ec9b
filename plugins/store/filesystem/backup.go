package filesystem

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/ulikunitz/xz"
)

// BackupPath 返回 dest 在当前备份模式下的备份路径；未启用备份时返回空串。
func (s *FS) BackupPath(dest string) string {
	switch s.backup {
	case BackupCopy:
		return dest + ".bak"
	case BackupXZ:
		return dest + ".bak.xz"
	default:
		return ""
	}
}

// writeBackup 将当前草稿原子写入备份文件（覆盖上一份备份）。
func (s *FS) writeBackup(ctx context.Context, dest string, perm os.FileMode) error {
	src, err := os.Open(dest)
	if err != nil {
		return err
	}
	defer src.Close()

	in := readerWithCtx(ctx, src)
	fill := func(w io.Writer) error {
		_, err := io.Copy(w, in)
		return err
	}
	if s.backup == BackupXZ {
		fill = func(w io.Writer) error {
			xw, err := xz.NewWriter(w)
			if err != nil {
				return err
			}
			if _, err := io.Copy(xw, in); err != nil {
				_ = xw.Close()
				return err
			}
			return xw.Close()
		}
	}
	return s.writeAtomic(s.BackupPath(dest), perm, fill)
}

// OpenBackup 打开 xz 或普通备份的解压内容。
func OpenBackup(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(path, ".xz") {
		return f, nil
	}
	xr, err := xz.NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return struct {
		io.Reader
		io.Closer
	}{xr, f}, nil
}
