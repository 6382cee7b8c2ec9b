// Package shuffle 实现标记对窗口内的片段重排。
//
// 约束：
// - 纯内存操作，不做 I/O，不起并发；
// - 随机性只来自注入的 Permuter；
// - 全部校验先于第一次改写完成：返回错误时文档未被修改；
// - 槽位下标在收集时捕获，不依赖按值查找。
package shuffle

import (
	"fmt"
	"math/rand/v2"
	"sort"

	"capshuffle/pkg/contract"
	"capshuffle/pkg/draft"
)

// Permuter 返回 0..n-1 的一个排列。*math/rand/v2.Rand 满足该接口。
type Permuter interface {
	Perm(n int) []int
}

// NewRandom 返回独立播种的均匀随机排列源；每个文档各用一个，互不共享。
func NewRandom() Permuter {
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

// Skip 描述窗口被跳过的原因。
type Skip string

const (
	SkipNone Skip = ""
	// SkipInvalid: 起点 >= 终点（重复或异常标记）。
	SkipInvalid Skip = "invalid"
	// SkipEmpty: 窗口内没有完全包含的片段。
	SkipEmpty Skip = "empty"
)

// Window 为一个标记对的处理记录。
type Window struct {
	Pair  int
	Start int64
	End   int64
	// Slots: 被收集片段的槽位（升序）。
	Slots []int
	Skip  Skip
}

// Summary 为一次 Shuffle 的摘要，仅用于日志与 dry-run 展示。
type Summary struct {
	Markers int
	// Track: 目标轨道在 tracks 中的下标；Segments 为其片段数。
	Track    int
	Segments int
	Windows  []Window
}

// Shuffled 返回实际重排的窗口数。
func (s Summary) Shuffled() int {
	n := 0
	for _, w := range s.Windows {
		if w.Skip == SkipNone {
			n++
		}
	}
	return n
}

// Moved 返回被重新计时的片段总数。
func (s Summary) Moved() int {
	n := 0
	for _, w := range s.Windows {
		if w.Skip == SkipNone {
			n += len(w.Slots)
		}
	}
	return n
}

// Shuffler 对单个文档执行标记对重排。不可并发复用（Permuter 通常非并发安全）。
type Shuffler struct {
	perm Permuter
}

// New 创建 Shuffler；perm 不可为 nil。
func New(perm Permuter) *Shuffler {
	return &Shuffler{perm: perm}
}

// Shuffle 原地改写 doc：
//  1. 标记按起点降序，两两成对 (m[0],m[1]), (m[2],m[3])…，奇数尾项忽略；
//  2. 目标轨道为含片段的 video 轨道中片段数最多者（并列取先出现者）；
//  3. 每个有效窗口 [m[2p+1], m[2p]] 内完全包含的片段随机重排到同一组槽位，
//     并自窗口起点起首尾相接地重新计算 start。
//
// 标记对之间的重叠不做检测：按成对顺序依次处理，后一窗口看到的是前一窗口改写后的 start。
func (s *Shuffler) Shuffle(doc *draft.Document) (Summary, error) {
	var sum Summary
	if s == nil || s.perm == nil {
		return sum, fmt.Errorf("%w: shuffler has no permutation source", contract.ErrInvariantViolation)
	}

	markers, err := doc.MarkerStarts()
	if err != nil {
		return sum, err
	}
	sort.Slice(markers, func(i, j int) bool { return markers[i] > markers[j] })
	sum.Markers = len(markers)
	if len(markers) < 2 {
		return sum, contract.ErrInsufficientMarkers
	}

	track, err := selectTrack(doc)
	if err != nil {
		return sum, err
	}
	sum.Track = track.Index()
	sum.Segments = track.Len()

	// 预检目标轨道全部片段的计时字段，保证后续改写不会中途失败。
	for i := 0; i < track.Len(); i++ {
		if err := track.Segment(i).CheckTimerange(); err != nil {
			return sum, fmt.Errorf("%s[%d].%s[%d]: %w", draft.KeyTracks, track.Index(), draft.KeySegments, i, err)
		}
	}

	for p := 0; p+1 < len(markers); p += 2 {
		w := Window{Pair: p / 2, Start: markers[p+1], End: markers[p]}
		if w.Start >= w.End {
			w.Skip = SkipInvalid
			sum.Windows = append(sum.Windows, w)
			continue
		}
		if err := s.window(track, &w); err != nil {
			return sum, err
		}
		sum.Windows = append(sum.Windows, w)
	}
	return sum, nil
}

// selectTrack 选出目标轨道。
func selectTrack(doc *draft.Document) (draft.Track, error) {
	tracks, err := doc.Tracks()
	if err != nil {
		return draft.Track{}, err
	}
	if len(tracks) == 0 {
		return draft.Track{}, contract.ErrNoTracks
	}
	best := -1
	for i, t := range tracks {
		if !t.IsVideo() || t.Len() == 0 {
			continue
		}
		if best < 0 || t.Len() > tracks[best].Len() {
			best = i
		}
	}
	if best < 0 {
		return draft.Track{}, contract.ErrNoVideoTrack
	}
	return tracks[best], nil
}

// window 处理单个窗口：收集 → 排列 → 放回原槽位集合 → 重新计时。
func (s *Shuffler) window(track draft.Track, w *Window) error {
	type picked struct {
		slot int
		seg  draft.Segment
		dur  int64
	}
	var got []picked
	for i := 0; i < track.Len(); i++ {
		seg := track.Segment(i)
		start, dur, _ := seg.Timerange() // 已预检
		// dur 已预检为非负；以差值比较避免 start+dur 溢出。
		if start >= w.Start && start <= w.End && dur <= w.End-start {
			got = append(got, picked{slot: i, seg: seg, dur: dur})
		}
	}
	if len(got) == 0 {
		w.Skip = SkipEmpty
		return nil
	}

	// 扫描按槽位升序进行，got 的 slot 已有序。
	w.Slots = make([]int, len(got))
	for i, g := range got {
		w.Slots[i] = g.slot
	}

	order := s.perm.Perm(len(got))
	if !isPermutation(order, len(got)) {
		return fmt.Errorf("%w: permutation source returned %v for n=%d", contract.ErrInvariantViolation, order, len(got))
	}

	cursor := w.Start
	for k, from := range order {
		g := got[from]
		track.Place(w.Slots[k], g.seg)
		g.seg.SetStart(cursor)
		cursor += g.dur
	}
	return nil
}

func isPermutation(p []int, n int) bool {
	if len(p) != n {
		return false
	}
	seen := make([]bool, n)
	for _, v := range p {
		if v < 0 || v >= n || seen[v] {
			return false
		}
		seen[v] = true
	}
	return true
}
