package contract

import (
	"fmt"

	"go.uber.org/multierr"
)

// Outcome: 单个项目的处理结果。
type Outcome struct {
	Project ProjectID
	// Windows: 实际重排（非跳过）的窗口数；Moved: 被重新计时的片段数。
	Windows int
	Moved   int
	// Before/After: 处理前后文档规范编码的摘要（blake3 hex）。
	Before string
	After  string
	// Stored: 是否已写回（dry-run 时为 false）。
	Stored bool
}

// Changed 报告文档内容是否发生变化。
func (o Outcome) Changed() bool { return o.Before != o.After }

// Failure: 单个项目的失败记录（项目标识 + 原因）。
type Failure struct {
	Project ProjectID
	Err     error
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s: %v", f.Project.Name(), f.Err)
}

func (f Failure) Unwrap() error { return f.Err }

// Report: 批处理汇总。Processed/Failures 均按输入顺序排列。
type Report struct {
	Processed []Outcome
	Failures  []Failure
}

// Err 将全部失败合并为一个错误；无失败时返回 nil。
func (r Report) Err() error {
	var err error
	for _, f := range r.Failures {
		err = multierr.Append(err, f)
	}
	return err
}
