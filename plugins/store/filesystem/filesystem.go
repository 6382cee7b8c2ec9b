package filesystem

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"capshuffle/pkg/contract"
)

// 备份模式。
const (
	BackupNone = ""
	BackupCopy = "copy"
	BackupXZ   = "xz"
)

// Options: 最小必要选项。
type Options struct {
	// FileName: 项目目录下的草稿文件名，默认 draft_content.json。
	FileName string `json:"file_name,omitempty"`
	// Atomic: 是否使用原子替换（同目录临时文件 + rename）。
	// 默认值：true。未提供该字段时采用原子写；显式 false 可关闭。
	Atomic *bool `json:"atomic,omitempty"`
	// Backup: 覆盖前保留原草稿；copy 写 <file>.bak，xz 写 <file>.bak.xz。
	Backup string `json:"backup,omitempty" validate:"omitempty,oneof=copy xz"`
	// PermFile: 新文件权限；为 0 时沿用原文件权限（不存在则 0644）。
	PermFile os.FileMode `json:"perm_file,omitempty"`
	// BufSize: 读写缓冲区大小；<=0 使用实现默认。
	BufSize int `json:"buf_size,omitempty" validate:"gte=0"`
}

// FS 为基于本地文件系统的 ProjectStore。
type FS struct {
	name    string
	atomic  bool
	backup  string
	permF   os.FileMode
	bufSize int
}

// New 创建文件系统 ProjectStore；opts 可为 nil。
func New(opts *Options) (*FS, error) {
	if opts == nil {
		opts = &Options{}
	}
	name := strings.TrimSpace(opts.FileName)
	if name == "" {
		name = contract.DraftFileName
	}
	// 文件名只能是单个路径段
	if name != filepath.Base(name) || name == "." || name == ".." {
		return nil, fmt.Errorf("%w: file_name %q", contract.ErrPathInvalid, opts.FileName)
	}
	switch opts.Backup {
	case BackupNone, BackupCopy, BackupXZ:
	default:
		return nil, fmt.Errorf("%w: backup %q", os.ErrInvalid, opts.Backup)
	}
	bsz := opts.BufSize
	if bsz <= 0 {
		bsz = 64 * 1024
	}
	atomic := true
	if opts.Atomic != nil {
		atomic = *opts.Atomic
	}
	return &FS{name: name, atomic: atomic, backup: opts.Backup, permF: opts.PermFile, bufSize: bsz}, nil
}

var _ contract.ProjectStore = (*FS)(nil)

// Path 返回项目目录下草稿文件的路径。
func (s *FS) Path(projectDir string) (string, error) {
	if strings.TrimSpace(projectDir) == "" {
		return "", contract.ErrPathInvalid
	}
	return filepath.Join(filepath.Clean(projectDir), s.name), nil
}

// Open 打开草稿文件。文件缺失或为目录时返回包装 ErrNotFound 的错误。
func (s *FS) Open(ctx context.Context, projectDir string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := s.Path(projectDir)
	if err != nil {
		return nil, err
	}
	st, err := os.Stat(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", contract.ErrNotFound, p)
	}
	if err != nil {
		return nil, err
	}
	if st.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", contract.ErrNotFound, p)
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, err
	}
	return newBufferedCloser(f, s.bufSize), nil
}

// Replace 以 r 的全部字节覆盖草稿文件；按配置先写备份。
func (s *FS) Replace(ctx context.Context, projectDir string, r io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dest, err := s.Path(projectDir)
	if err != nil {
		return err
	}
	perm := s.permF
	if st, err := os.Stat(dest); err == nil {
		if st.IsDir() {
			return fmt.Errorf("%w: %s is a directory", contract.ErrPathInvalid, dest)
		}
		if perm == 0 {
			perm = st.Mode().Perm()
		}
		if s.backup != BackupNone {
			if err := s.writeBackup(ctx, dest, perm); err != nil {
				return fmt.Errorf("backup: %w", err)
			}
		}
	}
	if perm == 0 {
		perm = 0o644
	}
	fill := func(w io.Writer) error {
		_, err := io.Copy(w, readerWithCtx(ctx, r))
		return err
	}
	if s.atomic {
		return s.writeAtomic(dest, perm, fill)
	}
	return s.writeOverwrite(dest, perm, fill)
}

func (s *FS) writeOverwrite(dest string, perm os.FileMode, fill func(io.Writer) error) error {
	f, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	defer f.Close()

	bw := bufio.NewWriterSize(f, s.bufSize)
	if err := fill(bw); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	return f.Close()
}

// writeAtomic 写入同目录临时文件后替换 dest；任一步失败都会清理临时文件。
func (s *FS) writeAtomic(dest string, perm os.FileMode, fill func(io.Writer) error) (err error) {
	dir := filepath.Dir(dest)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()
	_ = os.Chmod(tmpPath, perm)

	bw := bufio.NewWriterSize(tmp, s.bufSize)
	if err = fill(bw); err != nil {
		return err
	}
	if err = bw.Flush(); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = replaceFile(tmpPath, dest); err != nil {
		return err
	}
	_ = syncDir(dir)
	return nil
}

// readerWithCtx: 在每次 Read 前检查 ctx 是否已取消。
func readerWithCtx(ctx context.Context, r io.Reader) io.Reader {
	return &ctxReader{ctx: ctx, r: r}
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr *ctxReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}
	return cr.r.Read(p)
}

// bufferedCloser 将 bufio.Reader 与底层 Closer 组合为 ReadCloser。
type bufferedCloser struct {
	*bufio.Reader
	c io.Closer
}

func newBufferedCloser(c io.ReadCloser, bufSize int) *bufferedCloser {
	return &bufferedCloser{Reader: bufio.NewReaderSize(c, bufSize), c: c}
}

func (b *bufferedCloser) Close() error { return b.c.Close() }
