package contract

import "errors"

// 文档处理的最小错误分类（哨兵）；调用方以 errors.Is 判别，不做字符串匹配。
var (
	// ErrNotFound: 项目目录下不存在草稿文件。
	ErrNotFound = errors.New("draft document not found")
	// ErrFormat: 草稿内容无法解析为预期的 JSON 结构（含计时字段类型错误）。
	ErrFormat = errors.New("draft document malformed")
	// ErrInsufficientMarkers: 标记少于 2 个，无法成对。
	ErrInsufficientMarkers = errors.New("project must contain at least 2 markers")
	// ErrNoTracks: 文档没有任何轨道。
	ErrNoTracks = errors.New("project has no tracks")
	// ErrNoVideoTrack: 有轨道，但没有含片段的 video 轨道。
	ErrNoVideoTrack = errors.New("no video track with segments found")
)

// 基础设施相关错误。
var (
	// ErrPathInvalid: 项目路径映射为无效路径（空串、非目录等）。
	ErrPathInvalid = errors.New("path invalid")
	// ErrInvariantViolation: 领域不变量违例（通用哨兵），例如注入的随机源给出的不是排列。
	ErrInvariantViolation = errors.New("invariant violation")
)
