// Package draft 提供草稿文档的保序 JSON 树与只读/窄写视图。
//
// 树保留对象键顺序与数字字面量，未知字段原样往返；
// 核心算法只通过 view.go 中的 Track/Segment 视图访问计时字段。
package draft

import (
	"encoding/json"
	"math"
	"strconv"
)

// Kind 为节点类型。
type Kind uint8

const (
	Null Kind = iota
	Bool
	Number
	String
	Array
	Object
)

func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case Bool:
		return "bool"
	case Number:
		return "number"
	case String:
		return "string"
	case Array:
		return "array"
	case Object:
		return "object"
	default:
		return "unknown"
	}
}

// Member 为对象中的一个键值对。
type Member struct {
	Key   string
	Value *Node
}

// Node 为保序 JSON 树节点。零值为 null。
// 数字以原始字面量保存，未修改的数字写回时逐字节一致。
type Node struct {
	kind    Kind
	boolean bool
	text    string // Number 字面量或 String 值
	items   []*Node
	members []Member
}

func NewNull() *Node { return &Node{kind: Null} }
func NewBool(b bool) *Node { return &Node{kind: Bool, boolean: b} }
func NewString(s string) *Node { return &Node{kind: String, text: s} }
func NewInt(v int64) *Node { return &Node{kind: Number, text: strconv.FormatInt(v, 10)} }
func NewObject() *Node { return &Node{kind: Object} }
func NewArray(items ...*Node) *Node {
	return &Node{kind: Array, items: items}
}

// NewNumber 以字面量构造数字节点；调用方保证字面量合法。
func NewNumber(lit json.Number) *Node { return &Node{kind: Number, text: string(lit)} }

// Kind 返回节点类型；nil 视为 null。
func (n *Node) Kind() Kind {
	if n == nil {
		return Null
	}
	return n.kind
}

// Get 返回对象成员；非对象或不存在时返回 nil。
func (n *Node) Get(key string) *Node {
	if n == nil || n.kind != Object {
		return nil
	}
	for i := range n.members {
		if n.members[i].Key == key {
			return n.members[i].Value
		}
	}
	return nil
}

// Path 逐级取对象成员；任一级缺失返回 nil。
func (n *Node) Path(keys ...string) *Node {
	cur := n
	for _, k := range keys {
		cur = cur.Get(k)
		if cur == nil {
			return nil
		}
	}
	return cur
}

// Set 设置对象成员：已存在则原位替换值，否则追加到末尾。
// 非对象节点上调用为 no-op。
func (n *Node) Set(key string, v *Node) {
	if n == nil || n.kind != Object {
		return
	}
	if v == nil {
		v = NewNull()
	}
	for i := range n.members {
		if n.members[i].Key == key {
			n.members[i].Value = v
			return
		}
	}
	n.members = append(n.members, Member{Key: key, Value: v})
}

// Keys 返回对象键（保持原顺序）。
func (n *Node) Keys() []string {
	if n == nil || n.kind != Object {
		return nil
	}
	out := make([]string, len(n.members))
	for i, m := range n.members {
		out[i] = m.Key
	}
	return out
}

// Len 返回数组元素数或对象成员数；其他类型为 0。
func (n *Node) Len() int {
	if n == nil {
		return 0
	}
	switch n.kind {
	case Array:
		return len(n.items)
	case Object:
		return len(n.members)
	default:
		return 0
	}
}

// Index 返回数组第 i 个元素；越界或非数组返回 nil。
func (n *Node) Index(i int) *Node {
	if n == nil || n.kind != Array || i < 0 || i >= len(n.items) {
		return nil
	}
	return n.items[i]
}

// SetIndex 替换数组第 i 个槽位的元素；越界或非数组为 no-op。
func (n *Node) SetIndex(i int, v *Node) {
	if n == nil || n.kind != Array || i < 0 || i >= len(n.items) {
		return
	}
	n.items[i] = v
}

// Str 返回字符串值。
func (n *Node) Str() (string, bool) {
	if n == nil || n.kind != String {
		return "", false
	}
	return n.text, true
}

// Int64 将数字解释为整数。接受形如 1000 或 1000.0 的整值字面量；
// 小数部分非零或超出 int64 范围时返回 false。
func (n *Node) Int64() (int64, bool) {
	if n == nil || n.kind != Number {
		return 0, false
	}
	if v, err := strconv.ParseInt(n.text, 10, 64); err == nil {
		return v, true
	}
	f, err := strconv.ParseFloat(n.text, 64)
	if err != nil || f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

// Clone 深拷贝节点。
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	out := &Node{kind: n.kind, boolean: n.boolean, text: n.text}
	if n.items != nil {
		out.items = make([]*Node, len(n.items))
		for i, it := range n.items {
			out.items[i] = it.Clone()
		}
	}
	if n.members != nil {
		out.members = make([]Member, len(n.members))
		for i, m := range n.members {
			out.members[i] = Member{Key: m.Key, Value: m.Value.Clone()}
		}
	}
	return out
}
