package pipeline

import (
	"bytes"
	"context"
	"fmt"

	"capshuffle/pkg/contract"
	"capshuffle/pkg/draft"
)

// Accessor 在字节级 ProjectStore 之上完成草稿的解析与序列化。
type Accessor struct {
	store  contract.ProjectStore
	indent string
}

// NewAccessor 创建 Accessor；indent 为空时写出紧凑 JSON。
func NewAccessor(store contract.ProjectStore, indent string) Accessor {
	return Accessor{store: store, indent: indent}
}

// Load 读取并解析项目草稿。缺失返回 ErrNotFound，内容非法返回 ErrFormat。
func (a Accessor) Load(ctx context.Context, projectDir string) (*draft.Document, error) {
	rc, err := a.store.Open(ctx, projectDir)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	root, err := draft.Decode(rc)
	if err != nil {
		return nil, err
	}
	return draft.NewDocument(root)
}

// Store 序列化文档并整体替换原草稿。
func (a Accessor) Store(ctx context.Context, projectDir string, doc *draft.Document) error {
	b, err := draft.Marshal(doc.Root(), a.indent)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return a.store.Replace(ctx, projectDir, bytes.NewReader(b))
}
