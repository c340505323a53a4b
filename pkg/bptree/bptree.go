// Package bptree provides an in-memory ordered map built on a B+ tree.
package bptree

import (
	"cmp"
	"sync"
)

// DefaultOrder is the fallback branching factor if a user-supplied order is too small.
const DefaultOrder = 4

// findChildIndex determines which child pointer to follow in an internal node.
func findChildIndex[K cmp.Ordered](keys []K, searchKey K) int {
	for i, k := range keys {
		if cmp.Less(searchKey, k) {
			return i
		}
	}
	return len(keys)
}

// BPlusTree is an ordered map from K to V. Leaves are linked for in-order scans.
// All methods are safe for concurrent use.
type BPlusTree[K cmp.Ordered, V any] struct {
	root   *node[K, V]
	order  int
	height int
	size   int
	m      sync.RWMutex
}

// node represents both internal and leaf nodes in the B+Tree.
type node[K cmp.Ordered, V any] struct {
	isLeaf   bool
	keys     []K
	children []*node[K, V] // used if !isLeaf
	values   []V           // used if isLeaf
	parent   *node[K, V]
	next     *node[K, V] // leaf-link pointer, for range scans
}

// NewBPlusTree creates and returns a B+Tree with the given order.
// If the specified order < 3, we fall back to DefaultOrder.
func NewBPlusTree[K cmp.Ordered, V any](order int) *BPlusTree[K, V] {
	if order < 3 {
		order = DefaultOrder
	}
	return &BPlusTree[K, V]{
		root:   newLeaf[K, V](order),
		order:  order,
		height: 1,
	}
}

func newLeaf[K cmp.Ordered, V any](order int) *node[K, V] {
	return &node[K, V]{
		isLeaf: true,
		keys:   make([]K, 0, order),
		values: make([]V, 0, order),
	}
}

// Height returns the number of levels in the tree
func (tree *BPlusTree[K, V]) Height() int {
	tree.m.RLock()
	defer tree.m.RUnlock()
	return tree.height
}

// Len returns the number of keys stored
func (tree *BPlusTree[K, V]) Len() int {
	tree.m.RLock()
	defer tree.m.RUnlock()
	return tree.size
}

// Search locates the value associated with key (if it exists).
func (tree *BPlusTree[K, V]) Search(key K) (V, bool) {
	tree.m.RLock()
	defer tree.m.RUnlock()

	leaf := tree.findLeaf(key)
	if i, ok := leafIndex(leaf, key); ok {
		return leaf.values[i], true
	}
	var zero V
	return zero, false
}

// Insert adds or replaces the value for key. It returns the previous value and
// whether one existed.
func (tree *BPlusTree[K, V]) Insert(key K, value V) (V, bool) {
	tree.m.Lock()
	defer tree.m.Unlock()

	leaf := tree.findLeaf(key)
	old, replaced := insertKeyValueInLeaf(leaf, key, value)
	if replaced {
		return old, true
	}

	tree.size++
	if len(leaf.keys) > tree.order {
		tree.splitLeaf(leaf)
	}
	return old, false
}

// Delete removes key and returns the value it held. Leaves are not merged; separator
// keys in internal nodes stay valid bounds, so lookups are unaffected.
func (tree *BPlusTree[K, V]) Delete(key K) (V, bool) {
	tree.m.Lock()
	defer tree.m.Unlock()

	var zero V
	leaf := tree.findLeaf(key)
	i, ok := leafIndex(leaf, key)
	if !ok {
		return zero, false
	}

	old := leaf.values[i]
	leaf.keys = append(leaf.keys[:i], leaf.keys[i+1:]...)
	copy(leaf.values[i:], leaf.values[i+1:])
	leaf.values[len(leaf.values)-1] = zero
	leaf.values = leaf.values[:len(leaf.values)-1]
	tree.size--

	if tree.size == 0 {
		tree.reset()
	}
	return old, true
}

// Clear removes every key
func (tree *BPlusTree[K, V]) Clear() {
	tree.m.Lock()
	defer tree.m.Unlock()
	tree.reset()
}

// Ascend calls fn for every key in ascending order until fn returns false.
// fn must not modify the tree.
func (tree *BPlusTree[K, V]) Ascend(fn func(key K, value V) bool) {
	tree.m.RLock()
	defer tree.m.RUnlock()

	leaf := tree.root
	for !leaf.isLeaf {
		leaf = leaf.children[0]
	}

	for ; leaf != nil; leaf = leaf.next {
		for i, k := range leaf.keys {
			if !fn(k, leaf.values[i]) {
				return
			}
		}
	}
}

// Keys returns every key in ascending order
func (tree *BPlusTree[K, V]) Keys() []K {
	keys := make([]K, 0, tree.Len())
	tree.Ascend(func(key K, _ V) bool {
		keys = append(keys, key)
		return true
	})
	return keys
}

func (tree *BPlusTree[K, V]) reset() {
	tree.root = newLeaf[K, V](tree.order)
	tree.height = 1
	tree.size = 0
}

// findLeaf walks from the root to the leaf that holds or would hold key.
func (tree *BPlusTree[K, V]) findLeaf(key K) *node[K, V] {
	current := tree.root
	for !current.isLeaf {
		current = current.children[findChildIndex(current.keys, key)]
	}
	return current
}

func leafIndex[K cmp.Ordered, V any](leaf *node[K, V], key K) (int, bool) {
	for i, k := range leaf.keys {
		if c := cmp.Compare(k, key); c == 0 {
			return i, true
		} else if c > 0 {
			break
		}
	}
	return 0, false
}

func insertKeyValueInLeaf[K cmp.Ordered, V any](leaf *node[K, V], key K, value V) (V, bool) {
	idx := 0
	for idx < len(leaf.keys) && cmp.Less(leaf.keys[idx], key) {
		idx++
	}
	// Check if the key already exists
	if idx < len(leaf.keys) && leaf.keys[idx] == key {
		old := leaf.values[idx]
		leaf.values[idx] = value
		return old, true
	}
	leaf.keys = append(leaf.keys, key)
	leaf.values = append(leaf.values, value)

	// Shift elements to make room at idx
	copy(leaf.keys[idx+1:], leaf.keys[idx:])
	leaf.keys[idx] = key

	copy(leaf.values[idx+1:], leaf.values[idx:])
	leaf.values[idx] = value

	var zero V
	return zero, false
}

// splitLeaf handles splitting a leaf node that has overflowed.
func (tree *BPlusTree[K, V]) splitLeaf(leaf *node[K, V]) {
	mid := len(leaf.keys) / 2

	sibling := &node[K, V]{
		isLeaf: true,
		keys:   append([]K{}, leaf.keys[mid:]...),
		values: append([]V{}, leaf.values[mid:]...),
		next:   leaf.next,
		parent: leaf.parent,
	}

	leaf.keys = leaf.keys[:mid]
	leaf.values = leaf.values[:mid]
	leaf.next = sibling

	if leaf.parent == nil {
		tree.newRoot(sibling.keys[0], leaf, sibling)
		return
	}
	tree.insertKeyInParent(leaf.parent, sibling.keys[0], sibling)
}

// insertKeyInParent inserts key and links rightChild after it in parent.
func (tree *BPlusTree[K, V]) insertKeyInParent(parent *node[K, V], key K, rightChild *node[K, V]) {
	idx := 0
	for idx < len(parent.keys) && cmp.Less(parent.keys[idx], key) {
		idx++
	}

	parent.keys = append(parent.keys, key)
	copy(parent.keys[idx+1:], parent.keys[idx:])
	parent.keys[idx] = key

	parent.children = append(parent.children, rightChild)
	copy(parent.children[idx+2:], parent.children[idx+1:])
	parent.children[idx+1] = rightChild

	rightChild.parent = parent

	if len(parent.keys) > tree.order {
		tree.splitInternalNode(parent)
	}
}

// splitInternalNode handles splitting an internal node that has overflowed.
func (tree *BPlusTree[K, V]) splitInternalNode(internal *node[K, V]) {
	mid := len(internal.keys) / 2
	splitKey := internal.keys[mid]

	sibling := &node[K, V]{
		keys:     append([]K{}, internal.keys[mid+1:]...),
		children: append([]*node[K, V]{}, internal.children[mid+1:]...),
		parent:   internal.parent,
	}
	for _, child := range sibling.children {
		child.parent = sibling
	}

	internal.keys = internal.keys[:mid]
	internal.children = internal.children[:mid+1]

	if internal.parent == nil {
		tree.newRoot(splitKey, internal, sibling)
		return
	}
	tree.insertKeyInParent(internal.parent, splitKey, sibling)
}

func (tree *BPlusTree[K, V]) newRoot(key K, left, right *node[K, V]) {
	root := &node[K, V]{
		keys:     []K{key},
		children: []*node[K, V]{left, right},
	}
	left.parent = root
	right.parent = root
	tree.root = root
	tree.height++
}
