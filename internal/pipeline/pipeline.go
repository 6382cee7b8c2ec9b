package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"capshuffle/internal/diag"
	"capshuffle/internal/shuffle"
	"capshuffle/pkg/contract"
	"capshuffle/pkg/draft"
)

// - 单点并发：仅此层管理并发；Shuffler 与存取组件均为同步实现。
// - 项目隔离：每个项目独立的文档树与 Permuter，不共享状态。
// - 失败不扩散：单个项目失败被记录并继续处理其余项目。
// - 顺序稳定：Report 中的结果按输入顺序排列。

// Components 聚合运行所需的组件。
type Components struct {
	Store contract.ProjectStore
	// Discoverer: 仅在 Settings.Scan 非空时需要。
	Discoverer contract.Discoverer
	// NewPermuter: 每个项目调用一次；为 nil 时使用 shuffle.NewRandom。
	NewPermuter func() shuffle.Permuter
	// Status: 终端提示（可选）。
	Status *diag.Terminal
}

// Settings 运行期配置。
type Settings struct {
	// Projects: 显式指定的项目目录；Scan: 需要发现子项目的父目录。
	Projects    []string
	Scan        []string
	Concurrency int
	// DryRun: 执行重排但不写回。
	DryRun bool
	// Indent: 写回时的缩进（空串为紧凑格式）。
	Indent string
}

func (c Components) permuter() shuffle.Permuter {
	if c.NewPermuter != nil {
		return c.NewPermuter()
	}
	return shuffle.NewRandom()
}

// Process 处理单个项目：Load → Shuffle → Store。仅在 Shuffle 成功后写回。
func Process(ctx context.Context, comp Components, set Settings, projectDir string, logger *diag.Logger) (contract.Outcome, error) {
	id := contract.NormalizeProjectID(projectDir)
	out := contract.Outcome{Project: id}
	if err := ctx.Err(); err != nil {
		return out, err
	}
	if comp.Store == nil {
		return out, errors.New("pipeline: missing store")
	}
	acc := NewAccessor(comp.Store, set.Indent)
	name := id.Name()
	t0 := time.Now()

	fail := func(stage string, err error) (contract.Outcome, error) {
		code := diag.Classify(err)
		logger.ErrorWith(stage, code, stage+" failed: "+err.Error(), &t0, name)
		diag.IncOp(stage, "error", "error")
		if code != diag.CodeUnknown {
			diag.IncError(stage, code)
		}
		return out, fmt.Errorf("%s: %w", stage, err)
	}

	ltimer := logger.StartWith("load", "load", name, map[string]string{"dir": projectDir})
	doc, err := acc.Load(ctx, projectDir)
	if err != nil {
		return fail("load", err)
	}
	ltimer.Finish("load", 0)
	diag.IncOp("load", "finish", "success")

	if out.Before, err = draft.Digest(doc.Root()); err != nil {
		return fail("load", err)
	}

	stimer := logger.StartWith("shuffle", "shuffle", name, nil)
	sum, err := shuffle.New(comp.permuter()).Shuffle(doc)
	if err != nil {
		return fail("shuffle", err)
	}
	for _, w := range sum.Windows {
		if w.Skip == shuffle.SkipInvalid {
			logger.Warn("shuffle", "invalid window skipped", name, map[string]string{
				"pair":  strconv.Itoa(w.Pair),
				"start": strconv.FormatInt(w.Start, 10),
				"end":   strconv.FormatInt(w.End, 10),
			})
			continue
		}
		logger.Debug("shuffle", "window", name, map[string]string{
			"pair":  strconv.Itoa(w.Pair),
			"start": strconv.FormatInt(w.Start, 10),
			"end":   strconv.FormatInt(w.End, 10),
			"slots": strconv.Itoa(len(w.Slots)),
			"skip":  string(w.Skip),
		})
	}
	out.Windows = sum.Shuffled()
	out.Moved = sum.Moved()
	stimer.FinishKV("shuffle", int64(out.Moved), map[string]string{
		"markers":  strconv.Itoa(sum.Markers),
		"track":    strconv.Itoa(sum.Track),
		"segments": strconv.Itoa(sum.Segments),
		"windows":  strconv.Itoa(out.Windows),
	})
	diag.IncOp("shuffle", "finish", "success")

	if out.After, err = draft.Digest(doc.Root()); err != nil {
		return fail("shuffle", err)
	}

	if set.DryRun {
		logger.Debug("store", "dry-run: store skipped", name, nil)
		diag.IncOp("store", "finish", "skip")
		return out, nil
	}
	wtimer := logger.StartWith("store", "store", name, nil)
	if err := acc.Store(ctx, projectDir, doc); err != nil {
		return fail("store", err)
	}
	wtimer.Finish("store", 0)
	diag.IncOp("store", "finish", "success")
	out.Stored = true
	return out, nil
}

// Run 处理全部项目：显式项目在前，随后是各 Scan 根下发现的项目（去重，保持首次出现顺序）。
// 单个项目（或 Scan 根）失败记入 Report.Failures，不影响其余项目。
// 仅在组件缺失、输入为空或 ctx 被取消时返回非 nil error。
func Run(ctx context.Context, comp Components, set Settings, logger *diag.Logger) (contract.Report, error) {
	var rep contract.Report
	if err := sanity(comp, &set); err != nil {
		return rep, fmt.Errorf("sanity: %w", err)
	}
	runStart := time.Now()
	rtimer := logger.Start("pipeline", "run")

	dirs, failures := resolve(ctx, comp, set, logger)
	rep.Failures = append(rep.Failures, failures...)

	type result struct {
		out  contract.Outcome
		err  error
		done bool
	}
	results := make([]result, len(dirs))
	comp.Status.RunStart(len(dirs), set.Concurrency, set.DryRun)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(set.Concurrency)
	for i, dir := range dirs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			t0 := time.Now()
			out, err := Process(gctx, comp, set, dir, logger)
			results[i] = result{out: out, err: err, done: true}
			comp.Status.ProjectFinish(dir, err == nil, statusDetail(out, err, set.DryRun), time.Since(t0))
			return nil
		})
	}
	_ = g.Wait()

	for i, r := range results {
		id := contract.NormalizeProjectID(dirs[i])
		switch {
		case !r.done:
			err := ctx.Err()
			if err == nil {
				err = context.Canceled
			}
			rep.Failures = append(rep.Failures, contract.Failure{Project: id, Err: err})
		case r.err != nil:
			rep.Failures = append(rep.Failures, contract.Failure{Project: id, Err: r.err})
		default:
			rep.Processed = append(rep.Processed, r.out)
		}
	}

	comp.Status.RunFinish(time.Since(runStart))
	rtimer.FinishKV("run", int64(len(rep.Processed)), map[string]string{"failed": strconv.Itoa(len(rep.Failures))})
	logger.LogSnapshot("pipeline")
	if err := ctx.Err(); err != nil {
		return rep, err
	}
	return rep, nil
}

// resolve 合并显式项目与发现结果。发现失败的根以 Failure 形式返回。
func resolve(ctx context.Context, comp Components, set Settings, logger *diag.Logger) ([]string, []contract.Failure) {
	seen := make(map[contract.ProjectID]bool)
	var dirs []string
	add := func(d string) {
		id := contract.NormalizeProjectID(d)
		if seen[id] {
			return
		}
		seen[id] = true
		dirs = append(dirs, d)
	}
	for _, p := range set.Projects {
		add(p)
	}
	var failures []contract.Failure
	for _, root := range set.Scan {
		t := logger.StartWith("discover", "discover", "", map[string]string{"root": root})
		found, err := comp.Discoverer.Discover(ctx, root)
		if err != nil {
			code := diag.Classify(err)
			logger.ErrorWith("discover", code, "discover failed: "+err.Error(), nil, "")
			diag.IncOp("discover", "error", "error")
			failures = append(failures, contract.Failure{Project: contract.NormalizeProjectID(root), Err: fmt.Errorf("discover: %w", err)})
			continue
		}
		t.Finish("discover", int64(len(found)))
		diag.IncOp("discover", "finish", "success")
		for _, d := range found {
			add(d)
		}
	}
	return dirs, failures
}

func statusDetail(out contract.Outcome, err error, dryRun bool) string {
	if err != nil {
		return err.Error()
	}
	s := fmt.Sprintf("窗口 %d | 片段 %d", out.Windows, out.Moved)
	if dryRun {
		s += " | 未写回"
	} else if !out.Changed() {
		s += " | 无变化"
	}
	return s
}

func sanity(c Components, s *Settings) error {
	if c.Store == nil {
		return errors.New("pipeline: missing store")
	}
	if len(s.Scan) > 0 && c.Discoverer == nil {
		return errors.New("pipeline: scan roots given but no discoverer")
	}
	if s.Concurrency < 1 {
		s.Concurrency = 1
	}
	if len(s.Projects) == 0 && len(s.Scan) == 0 {
		return errors.New("pipeline: empty inputs")
	}
	return nil
}
