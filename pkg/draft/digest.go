package draft

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// Digest 返回树的紧凑规范编码的 blake3-256 摘要（hex）。
// 两棵树结构与字面量完全一致时摘要相同，用于判断处理前后是否发生变化。
func Digest(n *Node) (string, error) {
	b, err := Marshal(n, "")
	if err != nil {
		return "", err
	}
	sum := blake3.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}
