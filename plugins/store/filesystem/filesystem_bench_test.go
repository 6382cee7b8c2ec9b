package filesystem

import (
	"bytes"
	"context"
	"fmt"
	"testing"
)

// BenchmarkReplace 不同草稿尺寸与备份模式下的写回开销。
func BenchmarkReplace(b *testing.B) {
	for _, sz := range []int{64 * 1024, 4 * 1024 * 1024} {
		for _, mode := range []string{BackupNone, BackupCopy, BackupXZ} {
			b.Run(fmt.Sprintf("size=%d/backup=%s", sz, mode), func(b *testing.B) {
				data := bytes.Repeat([]byte(`{"k":1},`), sz/8)
				dir := b.TempDir()
				s, err := New(&Options{Backup: mode})
				if err != nil {
					b.Fatalf("创建 store 失败: %v", err)
				}
				ctx := context.Background()
				b.SetBytes(int64(len(data)))
				b.ReportAllocs()
				b.ResetTimer()
				for i := 0; i < b.N; i++ {
					if err := s.Replace(ctx, dir, bytes.NewReader(data)); err != nil {
						b.Fatalf("写入失败: %v", err)
					}
				}
			})
		}
	}
}
