package diag

import (
	"sort"
	"strconv"
	"strings"
	"sync"
)

// 进程内计数器。名称：
// - op_total{comp,stage,result}
// - error_total{comp,code}
// - op_duration_ms{comp,stage}（累计）

var (
	metricsMu sync.Mutex
	counters  = map[string]int64{}
)

func bump(name string, delta int64, labels ...string) {
	key := name
	if len(labels) > 0 {
		key += "{" + strings.Join(labels, ",") + "}"
	}
	metricsMu.Lock()
	counters[key] += delta
	metricsMu.Unlock()
}

// IncOp 累加操作计数（result=success|error|skip）。
func IncOp(comp, stage, result string) {
	bump("op_total", 1, comp, stage, result)
}

// IncError 按分类累加错误计数。
func IncError(comp string, code Code) {
	bump("error_total", 1, comp, string(code))
}

// ObserveDuration 累计阶段耗时（毫秒）。
func ObserveDuration(comp, stage string, durMS int64) {
	bump("op_duration_ms", durMS, comp, stage)
}

// Metric 为一条计数快照。
type Metric struct {
	Name  string
	Value int64
}

// Snapshot 按名称排序返回当前计数。
func Snapshot() []Metric {
	metricsMu.Lock()
	out := make([]Metric, 0, len(counters))
	for k, v := range counters {
		out = append(out, Metric{Name: k, Value: v})
	}
	metricsMu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ResetMetrics 清空计数（测试用）。
func ResetMetrics() {
	metricsMu.Lock()
	counters = map[string]int64{}
	metricsMu.Unlock()
}

// LogSnapshot 以 debug 级别写出计数快照。
func (l *Logger) LogSnapshot(comp string) {
	if l == nil {
		return
	}
	snap := Snapshot()
	if len(snap) == 0 {
		return
	}
	kv := make(map[string]string, len(snap))
	for _, m := range snap {
		kv[m.Name] = strconv.FormatInt(m.Value, 10)
	}
	l.Debug(comp, "metrics", "", kv)
}
