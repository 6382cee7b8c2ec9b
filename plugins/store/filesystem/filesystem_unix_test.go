//go:build !windows

package filesystem

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"capshuffle/pkg/contract"
)

// 覆盖写回保留原文件权限 (Unix only)
func TestReplaceKeepsPermissions(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, contract.DraftFileName)
	if err := os.WriteFile(p, []byte("v1"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.Chmod(p, 0o600); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	s, _ := New(&Options{Backup: BackupCopy})
	if err := s.Replace(context.Background(), dir, strings.NewReader("v2")); err != nil {
		t.Fatalf("replace: %v", err)
	}
	for _, f := range []string{p, s.BackupPath(p)} {
		st, err := os.Stat(f)
		if err != nil {
			t.Fatalf("stat: %v", err)
		}
		if st.Mode().Perm() != 0o600 {
			t.Fatalf("%s 权限应为 0600, got %v", filepath.Base(f), st.Mode().Perm())
		}
	}
}

// 显式 PermFile 优先 (Unix only)
func TestReplaceExplicitPermission(t *testing.T) {
	dir := t.TempDir()
	s, _ := New(&Options{PermFile: 0o640})
	if err := s.Replace(context.Background(), dir, strings.NewReader("{}")); err != nil {
		t.Fatalf("replace: %v", err)
	}
	st, err := os.Stat(filepath.Join(dir, contract.DraftFileName))
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if st.Mode().Perm() != 0o640 {
		t.Fatalf("权限应为 0640, got %v", st.Mode().Perm())
	}
}
