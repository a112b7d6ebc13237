// Package trie implements a fixed-depth prefix tree used as the seed index of
// the genome matcher. Nodes live in a flat arena addressed by integer handles;
// the nucleotide alphabet gets a direct-indexed child table and any other byte
// falls back to a short edge list.
package trie

// none marks an empty child slot. The root is never a child, so handle 0 is
// free to use as the sentinel.
const none int32 = 0

// baseSlots is the number of directly indexed children per node (A, C, G, T, N).
const baseSlots = 5

// slotOf maps a byte to its child slot, or -1 for bytes outside ACGTN.
var slotOf = func() [256]int8 {
	var t [256]int8
	for i := range t {
		t[i] = -1
	}
	for i, c := range []byte("ACGTN") {
		t[c] = int8(i)
	}
	return t
}()

var slotLabel = [baseSlots]byte{'A', 'C', 'G', 'T', 'N'}

type edge struct {
	label byte
	next  int32
}

type node[V any] struct {
	kids   [baseSlots]int32
	extra  []edge
	values []V
}

// Option configures a Trie.
type Option func(*options)

type options struct {
	anchorFirst bool
}

// WithAnchoredFirst disables substitution at the first key position during a
// fuzzy Find, so the first character must always match exactly.
func WithAnchoredFirst() Option {
	return func(o *options) { o.anchorFirst = true }
}

// Trie maps string keys to one or more values of type V. It is not safe for
// concurrent use while Insert or Reset may run.
type Trie[V any] struct {
	nodes []node[V]
	count int
	opts  options
}

// New returns an empty Trie.
func New[V any](opts ...Option) *Trie[V] {
	t := &Trie[V]{}
	for _, opt := range opts {
		opt(&t.opts)
	}
	t.Reset()
	return t
}

// Reset discards every node and value and restores an empty root.
func (t *Trie[V]) Reset() {
	t.nodes = make([]node[V], 1, 1024)
	t.count = 0
}

// Len returns the number of values inserted since the last Reset.
func (t *Trie[V]) Len() int {
	return t.count
}

// Nodes returns the number of allocated nodes, including the root.
func (t *Trie[V]) Nodes() int {
	return len(t.nodes)
}

// Insert appends value to the list held by key's terminal node, creating any
// missing nodes. Repeated inserts accumulate. Empty keys are ignored.
func (t *Trie[V]) Insert(key string, value V) {
	if key == "" {
		return
	}
	cur := int32(0)
	for i := 0; i < len(key); i++ {
		next := t.child(cur, key[i])
		if next == none {
			next = t.addChild(cur, key[i])
		}
		cur = next
	}
	t.nodes[cur].values = append(t.nodes[cur].values, value)
	t.count++
}

// Find returns the values stored under key. With exactOnly set only the exact
// path is followed. Otherwise the result also holds every value reachable by
// substituting exactly one character of key with another label present in the
// tree at that depth. Duplicates are preserved and the returned slice is owned
// by the caller.
func (t *Trie[V]) Find(key string, exactOnly bool) []V {
	if key == "" {
		return nil
	}
	var out []V
	if n := t.walk(0, key); n != none {
		out = append(out, t.nodes[n].values...)
	}
	if exactOnly {
		return out
	}

	cur := int32(0)
	for i := 0; i < len(key); i++ {
		if i > 0 || !t.opts.anchorFirst {
			t.eachChild(cur, func(label byte, next int32) {
				if label == key[i] {
					return
				}
				if n := t.walk(next, key[i+1:]); n != none {
					out = append(out, t.nodes[n].values...)
				}
			})
		}
		cur = t.child(cur, key[i])
		if cur == none {
			break
		}
	}
	return out
}

// walk follows key from node n and returns the node reached, or none.
func (t *Trie[V]) walk(n int32, key string) int32 {
	for i := 0; i < len(key); i++ {
		n = t.child(n, key[i])
		if n == none {
			return none
		}
	}
	return n
}

func (t *Trie[V]) child(n int32, c byte) int32 {
	if s := slotOf[c]; s >= 0 {
		return t.nodes[n].kids[s]
	}
	for _, e := range t.nodes[n].extra {
		if e.label == c {
			return e.next
		}
	}
	return none
}

func (t *Trie[V]) addChild(n int32, c byte) int32 {
	t.nodes = append(t.nodes, node[V]{})
	next := int32(len(t.nodes) - 1)
	if s := slotOf[c]; s >= 0 {
		t.nodes[n].kids[s] = next
	} else {
		t.nodes[n].extra = append(t.nodes[n].extra, edge{label: c, next: next})
	}
	return next
}

func (t *Trie[V]) eachChild(n int32, fn func(label byte, next int32)) {
	nd := &t.nodes[n]
	for s, next := range nd.kids {
		if next != none {
			fn(slotLabel[s], next)
		}
	}
	for _, e := range nd.extra {
		fn(e.label, e.next)
	}
}
