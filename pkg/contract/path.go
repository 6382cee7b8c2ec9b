package contract

import (
	"path"
	"strings"
)

// NormalizeProjectID 规范化路径，统一为跨平台稳定的 ProjectID。
// 规则：
// - 使用正斜杠分隔符
// - 清理多余分隔符与路径片段（.、..）
// - 保留相对/绝对语义，不做隐式绝对化
func NormalizeProjectID(p string) ProjectID {
	return ProjectID(path.Clean(strings.ReplaceAll(p, "\\", "/")))
}

// Name 返回项目目录名（最后一段），用于汇总展示。
func (id ProjectID) Name() string {
	return path.Base(string(id))
}
