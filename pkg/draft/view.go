package draft

import (
	"fmt"

	"capshuffle/pkg/contract"
)

// 草稿文档中核心算法读写的键。
const (
	KeyTimeMarks       = "time_marks"
	KeyMarkItems       = "mark_items"
	KeyTimeRange       = "time_range"
	KeyTracks          = "tracks"
	KeyType            = "type"
	KeySegments        = "segments"
	KeyTargetTimerange = "target_timerange"
	KeyStart           = "start"
	KeyDuration        = "duration"

	TrackTypeVideo = "video"
)

// Document 为一份已解析的草稿。根必须是对象。
// 只通过窄视图访问 time_marks 与 tracks；其余内容原样保留。
type Document struct {
	root *Node
}

// NewDocument 包装已解析的根节点。
func NewDocument(root *Node) (*Document, error) {
	if root.Kind() != Object {
		return nil, fmt.Errorf("%w: top-level value is %s, want object", contract.ErrFormat, root.Kind())
	}
	return &Document{root: root}, nil
}

// Root 返回根节点（可变）。
func (d *Document) Root() *Node { return d.root }

// MarkerStarts 返回 time_marks.mark_items[].time_range.start（文档顺序）。
// time_marks 缺失或不是对象、mark_items 缺失时视为无标记；
// mark_items 不是数组或某项缺少整数 start 时返回 ErrFormat。
func (d *Document) MarkerStarts() ([]int64, error) {
	tm := d.root.Get(KeyTimeMarks)
	if tm.Kind() != Object {
		return nil, nil
	}
	items := tm.Get(KeyMarkItems)
	switch items.Kind() {
	case Null:
		return nil, nil
	case Array:
	default:
		return nil, fmt.Errorf("%w: %s.%s is %s, want array", contract.ErrFormat, KeyTimeMarks, KeyMarkItems, items.Kind())
	}
	out := make([]int64, 0, items.Len())
	for i := 0; i < items.Len(); i++ {
		v, ok := items.Index(i).Path(KeyTimeRange, KeyStart).Int64()
		if !ok {
			return nil, fmt.Errorf("%w: %s.%s[%d].%s.%s is not an integer", contract.ErrFormat, KeyTimeMarks, KeyMarkItems, i, KeyTimeRange, KeyStart)
		}
		out = append(out, v)
	}
	return out, nil
}

// Tracks 返回 tracks 数组的视图。tracks 缺失或为 null 时返回空；非数组返回 ErrFormat。
func (d *Document) Tracks() ([]Track, error) {
	arr := d.root.Get(KeyTracks)
	switch arr.Kind() {
	case Null:
		return nil, nil
	case Array:
	default:
		return nil, fmt.Errorf("%w: %s is %s, want array", contract.ErrFormat, KeyTracks, arr.Kind())
	}
	out := make([]Track, arr.Len())
	for i := range out {
		out[i] = Track{node: arr.Index(i), index: i}
	}
	return out, nil
}

// Track 为 tracks[i] 的视图。
type Track struct {
	node  *Node
	index int
}

// Index 返回轨道在 tracks 中的位置。
func (t Track) Index() int { return t.index }

// Type 返回轨道类型；缺失或非字符串返回空串。
func (t Track) Type() string {
	s, _ := t.node.Get(KeyType).Str()
	return s
}

// IsVideo 报告轨道类型是否为 video。
func (t Track) IsVideo() bool { return t.Type() == TrackTypeVideo }

// Len 返回片段数；segments 缺失或不是数组时为 0。
func (t Track) Len() int {
	segs := t.node.Get(KeySegments)
	if segs.Kind() != Array {
		return 0
	}
	return segs.Len()
}

// Segment 返回第 i 个槽位的片段视图。
func (t Track) Segment(i int) Segment {
	return Segment{node: t.node.Get(KeySegments).Index(i)}
}

// Place 将片段放入第 i 个槽位（替换该槽位原内容）。
func (t Track) Place(i int, s Segment) {
	t.node.Get(KeySegments).SetIndex(i, s.node)
}

// Segment 为片段视图，仅暴露 target_timerange。
type Segment struct {
	node *Node
}

// Node 返回底层节点。
func (s Segment) Node() *Node { return s.node }

// Timerange 返回 target_timerange 的 start 与 duration。
// 缺失字段按 0 处理；片段不是对象、字段存在但不是整数时返回 ErrFormat。
func (s Segment) Timerange() (start, duration int64, err error) {
	if s.node.Kind() != Object {
		return 0, 0, fmt.Errorf("%w: segment is %s, want object", contract.ErrFormat, s.node.Kind())
	}
	tr := s.node.Get(KeyTargetTimerange)
	if start, err = intField(tr, KeyStart); err != nil {
		return 0, 0, err
	}
	if duration, err = intField(tr, KeyDuration); err != nil {
		return 0, 0, err
	}
	return start, duration, nil
}

// CheckTimerange 严格校验计时：target_timerange 必须是对象且同时含整数 start 与
// 非负整数 duration，否则返回 ErrFormat。改写前的预检使用它，Timerange 仍宽松读取。
func (s Segment) CheckTimerange() error {
	if s.node.Kind() != Object {
		return fmt.Errorf("%w: segment is %s, want object", contract.ErrFormat, s.node.Kind())
	}
	tr := s.node.Get(KeyTargetTimerange)
	if tr.Kind() != Object {
		return fmt.Errorf("%w: %s is %s, want object", contract.ErrFormat, KeyTargetTimerange, tr.Kind())
	}
	for _, key := range []string{KeyStart, KeyDuration} {
		if tr.Get(key) == nil {
			return fmt.Errorf("%w: %s.%s missing", contract.ErrFormat, KeyTargetTimerange, key)
		}
	}
	_, dur, err := s.Timerange()
	if err != nil {
		return err
	}
	if dur < 0 {
		return fmt.Errorf("%w: %s.%s is negative (%d)", contract.ErrFormat, KeyTargetTimerange, KeyDuration, dur)
	}
	return nil
}

// SetStart 改写 target_timerange.start；target_timerange 缺失时创建。
// duration 不被触碰。
func (s Segment) SetStart(v int64) {
	if s.node.Kind() != Object {
		return
	}
	tr := s.node.Get(KeyTargetTimerange)
	if tr.Kind() != Object {
		tr = NewObject()
		s.node.Set(KeyTargetTimerange, tr)
	}
	tr.Set(KeyStart, NewInt(v))
}

func intField(obj *Node, key string) (int64, error) {
	n := obj.Get(key)
	if n == nil {
		return 0, nil
	}
	v, ok := n.Int64()
	if !ok {
		return 0, fmt.Errorf("%w: %s.%s is not an integer", contract.ErrFormat, KeyTargetTimerange, key)
	}
	return v, nil
}
