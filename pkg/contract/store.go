package contract

import (
	"context"
	"io"
)

// ProjectStore: 项目草稿的字节级存取（文件系统/对象存储等）。
// 约束：
//  1. Open 在草稿缺失时返回包装 ErrNotFound 的错误；
//  2. 按字节透传，不解析/修改业务内容（解析由 draft 包负责）；
//  3. Replace 覆盖原位置，成功或返回错误，不留半写状态（实现尽量原子）；
//  4. 错误直接上抛（不做重试/回退）。
type ProjectStore interface {
	Open(ctx context.Context, projectDir string) (io.ReadCloser, error)
	Replace(ctx context.Context, projectDir string, r io.Reader) error
}

// Discoverer: 在父目录下列出候选项目目录（直接子目录且包含草稿文件）。
// 返回顺序稳定；不递归。
type Discoverer interface {
	Discover(ctx context.Context, parent string) ([]string, error)
}
