package diag

import (
	"context"
	"errors"
	"io/fs"
	"os"

	"capshuffle/pkg/contract"
)

// Code 是最小错误分类代码。
// 仅用于日志/指标汇总，与退出码解耦。
type Code string

const (
	CodeUnknown    Code = "unknown"
	CodeNotFound   Code = "not_found"
	CodeFormat     Code = "format"
	CodeMarkers    Code = "markers"
	CodeTracks     Code = "tracks"
	CodeVideoTrack Code = "video_track"
	CodeInvariant  Code = "invariant"
	CodeCancel     Code = "cancel"
	CodeIO         Code = "io"
)

// Classify 将错误归为最小分类。
// 说明：仅依赖哨兵错误与标准库错误类型，不做字符串匹配。
func Classify(err error) Code {
	switch {
	case err == nil:
		return CodeUnknown
	// 取消/超时优先
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return CodeCancel
	case errors.Is(err, contract.ErrNotFound):
		return CodeNotFound
	case errors.Is(err, contract.ErrFormat):
		return CodeFormat
	case errors.Is(err, contract.ErrInsufficientMarkers):
		return CodeMarkers
	case errors.Is(err, contract.ErrNoTracks):
		return CodeTracks
	case errors.Is(err, contract.ErrNoVideoTrack):
		return CodeVideoTrack
	case errors.Is(err, contract.ErrInvariantViolation), errors.Is(err, contract.ErrPathInvalid):
		return CodeInvariant
	}
	var perr *fs.PathError
	var lerr *os.LinkError
	if errors.As(err, &perr) || errors.As(err, &lerr) {
		return CodeIO
	}
	return CodeUnknown
}
