package filesystem

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"capshuffle/pkg/contract"
)

func project(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, contract.DraftFileName), []byte(content), 0o644); err != nil {
		t.Fatalf("准备草稿失败: %v", err)
	}
	return dir
}

func readAll(t *testing.T, rc io.ReadCloser) string {
	t.Helper()
	defer rc.Close()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(b)
}

func noTemps(t *testing.T, dir string) {
	t.Helper()
	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".tmp-") {
			t.Fatalf("tmp file not cleaned: %s", e.Name())
		}
	}
}

func TestOpen(t *testing.T) {
	dir := project(t, `{"a":1}`)
	s, err := New(nil)
	require.NoError(t, err)
	rc, err := s.Open(context.Background(), dir)
	require.NoError(t, err)
	require.Equal(t, `{"a":1}`, readAll(t, rc))
}

func TestOpenNotFound(t *testing.T) {
	s, _ := New(nil)
	empty := t.TempDir()
	asDir := t.TempDir()
	if err := os.Mkdir(filepath.Join(asDir, contract.DraftFileName), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	for _, dir := range []string{empty, filepath.Join(empty, "missing"), asDir} {
		_, err := s.Open(context.Background(), dir)
		if !errors.Is(err, contract.ErrNotFound) {
			t.Fatalf("%s: 预期 ErrNotFound, got %v", dir, err)
		}
	}
	_, err := s.Open(context.Background(), " ")
	require.ErrorIs(t, err, contract.ErrPathInvalid)
}

// 原子写入：覆盖已有内容且不残留临时文件。
func TestReplaceAtomic(t *testing.T) {
	dir := project(t, "v1")
	s, _ := New(nil)
	if err := s.Replace(context.Background(), dir, bytes.NewBufferString("v2")); err != nil {
		t.Fatalf("replace: %v", err)
	}
	b, err := os.ReadFile(filepath.Join(dir, contract.DraftFileName))
	require.NoError(t, err)
	require.Equal(t, "v2", string(b))
	noTemps(t, dir)
	// 未启用备份时不产生备份文件
	entries, _ := os.ReadDir(dir)
	require.Len(t, entries, 1)
}

func TestReplaceNonAtomic(t *testing.T) {
	dir := project(t, "a much longer original body")
	off := false
	s, _ := New(&Options{Atomic: &off})
	require.NoError(t, s.Replace(context.Background(), dir, strings.NewReader("short")))
	b, err := os.ReadFile(filepath.Join(dir, contract.DraftFileName))
	require.NoError(t, err)
	require.Equal(t, "short", string(b))
}

func TestReplaceCustomFileName(t *testing.T) {
	dir := t.TempDir()
	s, err := New(&Options{FileName: "draft_info.json"})
	require.NoError(t, err)
	require.NoError(t, s.Replace(context.Background(), dir, strings.NewReader("{}")))
	rc, err := s.Open(context.Background(), dir)
	require.NoError(t, err)
	require.Equal(t, "{}", readAll(t, rc))
}

func TestReplaceBackups(t *testing.T) {
	for _, mode := range []string{BackupCopy, BackupXZ} {
		t.Run(mode, func(t *testing.T) {
			dir := project(t, `{"orig":true}`)
			s, err := New(&Options{Backup: mode})
			require.NoError(t, err)
			require.NoError(t, s.Replace(context.Background(), dir, strings.NewReader(`{"orig":false}`)))

			dest := filepath.Join(dir, contract.DraftFileName)
			bp := s.BackupPath(dest)
			require.NotEmpty(t, bp)
			rc, err := OpenBackup(bp)
			require.NoError(t, err)
			require.Equal(t, `{"orig":true}`, readAll(t, rc))

			if mode == BackupXZ {
				raw, err := os.ReadFile(bp)
				require.NoError(t, err)
				// xz 魔数
				require.True(t, bytes.HasPrefix(raw, []byte{0xFD, '7', 'z', 'X', 'Z', 0x00}))
			}
			// 第二次写回覆盖备份为上一版本
			require.NoError(t, s.Replace(context.Background(), dir, strings.NewReader(`{"v":3}`)))
			rc, err = OpenBackup(bp)
			require.NoError(t, err)
			require.Equal(t, `{"orig":false}`, readAll(t, rc))
			noTemps(t, dir)
		})
	}
}

// 目标不存在时不写备份。
func TestReplaceBackupSkippedForNewFile(t *testing.T) {
	dir := t.TempDir()
	s, _ := New(&Options{Backup: BackupCopy})
	require.NoError(t, s.Replace(context.Background(), dir, strings.NewReader("{}")))
	_, err := os.Stat(s.BackupPath(filepath.Join(dir, contract.DraftFileName)))
	require.True(t, errors.Is(err, os.ErrNotExist))
}

func TestReplaceCtxCancel(t *testing.T) {
	dir := project(t, "v1")
	s, _ := New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Replace(ctx, dir, strings.NewReader("v2")); !errors.Is(err, context.Canceled) {
		t.Fatalf("expect ctx error, got %v", err)
	}
	b, _ := os.ReadFile(filepath.Join(dir, contract.DraftFileName))
	require.Equal(t, "v1", string(b))
}

type errReader struct{}

func (errReader) Read(p []byte) (int, error) { return 0, errors.New("boom") }

// 拷贝失败时原文件保持不变，临时文件被清理。
func TestReplaceAtomicCopyError(t *testing.T) {
	dir := project(t, "v1")
	s, _ := New(nil)
	if err := s.Replace(context.Background(), dir, errReader{}); err == nil {
		t.Fatalf("expect copy error")
	}
	b, _ := os.ReadFile(filepath.Join(dir, contract.DraftFileName))
	require.Equal(t, "v1", string(b))
	noTemps(t, dir)
}

func TestReplaceMissingDir(t *testing.T) {
	s, _ := New(nil)
	err := s.Replace(context.Background(), filepath.Join(t.TempDir(), "nope"), strings.NewReader("x"))
	require.Error(t, err)
}

func TestNewInvalid(t *testing.T) {
	for _, name := range []string{"a/b.json", "..", "."} {
		if _, err := New(&Options{FileName: name}); !errors.Is(err, contract.ErrPathInvalid) {
			t.Fatalf("file_name %q 应被拒绝, got %v", name, err)
		}
	}
	if _, err := New(&Options{Backup: "zip"}); err == nil {
		t.Fatalf("expect error for unknown backup mode")
	}
}

func TestReaderWithCtxCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := readerWithCtx(ctx, strings.NewReader("data"))
	cancel()
	if _, err := r.Read(make([]byte, 1)); err == nil {
		t.Fatalf("expect ctx error")
	}
}
