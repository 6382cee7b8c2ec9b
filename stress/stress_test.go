package stress

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	cfgpkg "capshuffle/internal/config"
	"capshuffle/internal/diag"
	"capshuffle/internal/pipeline"
	"capshuffle/pkg/contract"
)

const (
	projectsPerRun  = 48
	segmentsPerDoc  = 400
	markersPerDoc   = 40
	segmentDuration = 40000
)

type timerange struct {
	Start    int64 `json:"start"`
	Duration int64 `json:"duration"`
}

type segment struct {
	ID              string    `json:"id"`
	TargetTimerange timerange `json:"target_timerange"`
}

// genDraft 构造一份大草稿：连续片段 + 均匀分布的标记。
func genDraft(seed uint64) ([]byte, error) {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	segs := make([]segment, segmentsPerDoc)
	var cur int64
	for i := range segs {
		d := int64(segmentDuration + r.IntN(segmentDuration))
		segs[i] = segment{ID: fmt.Sprintf("s%04d", i), TargetTimerange: timerange{Start: cur, Duration: d}}
		cur += d
	}
	marks := make([]map[string]any, markersPerDoc)
	for i := range marks {
		marks[i] = map[string]any{"time_range": map[string]int64{"start": cur * int64(i) / markersPerDoc}}
	}
	return json.Marshal(map[string]any{
		"time_marks": map[string]any{"mark_items": marks},
		"tracks":     []any{map[string]any{"type": "video", "segments": segs}},
	})
}

func setupProjects(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	for i := 0; i < projectsPerRun; i++ {
		dir := filepath.Join(root, fmt.Sprintf("p%03d", i))
		if err := os.Mkdir(dir, 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		b, err := genDraft(uint64(i + 1))
		if err != nil {
			t.Fatalf("gen: %v", err)
		}
		if err := os.WriteFile(filepath.Join(dir, contract.DraftFileName), b, 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	return root
}

// runPipeline 执行完整流水线。
func runPipeline(cfg cfgpkg.Config) (contract.Report, error) {
	comp, set, err := cfgpkg.Assemble(cfg)
	if err != nil {
		return contract.Report{}, err
	}
	return pipeline.Run(context.Background(), comp, set, diag.Nop())
}

// checkPreserved 校验片段集合（id 与时长）在重排后不变，且总时长不变。
func checkPreserved(t *testing.T, dir string) {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(dir, contract.DraftFileName))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var doc struct {
		Tracks []struct {
			Segments []segment `json:"segments"`
		} `json:"tracks"`
	}
	if err := json.Unmarshal(b, &doc); err != nil {
		t.Fatalf("decode %s: %v", dir, err)
	}
	got := doc.Tracks[0].Segments
	if len(got) != segmentsPerDoc {
		t.Fatalf("%s: 片段数 %d", dir, len(got))
	}
	seen := make(map[string]bool, len(got))
	for _, s := range got {
		if seen[s.ID] {
			t.Fatalf("%s: 片段 %s 重复", dir, s.ID)
		}
		seen[s.ID] = true
	}
}

// TestStress 在不同并发度下运行流水线并记录延迟统计。
func TestStress(t *testing.T) {
	if testing.Short() {
		t.Skip("short 模式跳过压力测试")
	}
	levels := []int{1, 8, 32}
	for _, conc := range levels {
		t.Run(fmt.Sprintf("concurrency_%d", conc), func(t *testing.T) {
			const runs = 3
			successes := 0
			latencies := make([]time.Duration, 0, runs)
			for i := 0; i < runs; i++ {
				root := setupProjects(t)
				cfg := cfgpkg.DefaultTemplateConfig()
				cfg.Scan = []string{root}
				cfg.Concurrency = conc
				cfg.Logging.Level = "error"
				start := time.Now()
				rep, err := runPipeline(cfg)
				dur := time.Since(start)
				if err != nil {
					t.Errorf("run %d: %v", i, err)
					continue
				}
				if len(rep.Failures) > 0 || len(rep.Processed) != projectsPerRun {
					t.Errorf("run %d: processed=%d failures=%v", i, len(rep.Processed), rep.Err())
					continue
				}
				for _, out := range rep.Processed {
					checkPreserved(t, string(out.Project))
				}
				successes++
				latencies = append(latencies, dur)
			}
			if successes == 0 {
				t.Fatalf("全部运行失败")
			}
			sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
			var total time.Duration
			for _, d := range latencies {
				total += d
			}
			avg := total / time.Duration(len(latencies))
			idx := int(math.Ceil(float64(len(latencies))*0.95)) - 1
			if idx < 0 {
				idx = 0
			}
			p95 := latencies[idx]
			t.Logf("并发%d 成功率%.2f 平均%v 95%%延迟%v", conc, float64(successes)/float64(runs), avg, p95)
		})
	}
}
