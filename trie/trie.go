// Copyright 2014 The go-ethereum Authors — structure adapted for this
// engine's content-addressed, Blake2b-hashed authenticated trie.

package trie

import (
	"bytes"
	"fmt"

	"github.com/casper-ee/execengine/key"
)

// emptyRoot is the content address of the empty trie (no entries).
var emptyRoot = func() key.Address {
	h, _, err := hashOf(&shortNode{Key: nil, Val: valueNode(nil)})
	if err != nil {
		panic(err)
	}
	var a key.Address
	copy(a[:], h)
	return a
}()

// MissingNodeError is returned when a hashNode reference cannot be
// resolved against the backing Database — the store is missing a node
// that the requested root claims to reference.
type MissingNodeError struct {
	NodeHash []byte
	Path     []byte
}

func (e *MissingNodeError) Error() string {
	return fmt.Sprintf("trie: missing node %x (path %x)", e.NodeHash, e.Path)
}

var errNotFound = fmt.Errorf("trie: not found")

// Trie is a content-addressed, Blake2b-hashed, copy-on-write Merkle trie
// (spec.md §4.A). A Trie value is a staged, mutable view rooted at some
// previously committed hash; Commit persists any newly created nodes and
// returns the new root, leaving the backing Database otherwise untouched
// (existing roots remain independently resolvable).
type Trie struct {
	db   Database
	root node
}

// New opens the trie rooted at root. A zero root denotes the empty trie.
func New(root key.Address, db Database) (*Trie, error) {
	t := &Trie{db: db}
	if root == (key.Address{}) || root == emptyRoot {
		return t, nil
	}
	rootNode, err := t.resolveHash(hashNode(root[:]), nil)
	if err != nil {
		return nil, err
	}
	t.root = rootNode
	return t, nil
}

func (t *Trie) resolveHash(n hashNode, path []byte) (node, error) {
	enc, err := t.db.Get([]byte(n))
	if err != nil {
		return nil, &MissingNodeError{NodeHash: []byte(n), Path: path}
	}
	return decode(enc)
}

func (t *Trie) resolve(n node, path []byte) (node, error) {
	if hn, ok := n.(hashNode); ok {
		return t.resolveHash(hn, path)
	}
	return n, nil
}

// Get returns the value stored at key, or nil if absent. It panics on an
// unresolvable (corrupt) trie; callers that need to distinguish missing
// nodes from missing keys should use TryGet.
func (t *Trie) Get(k []byte) []byte {
	v, err := t.TryGet(k)
	if err != nil {
		panic(err)
	}
	return v
}

// TryGet returns the value stored at key, or nil if absent.
func (t *Trie) TryGet(k []byte) ([]byte, error) {
	v, _, err := t.tryGet(t.root, keyBytesToNibbles(k), nil)
	return v, err
}

func (t *Trie) tryGet(n node, nibbles []byte, path []byte) ([]byte, node, error) {
	switch n := n.(type) {
	case nil:
		return nil, nil, nil
	case valueNode:
		return []byte(n), n, nil
	case *shortNode:
		if len(nibbles) < len(n.Key) || !bytes.Equal(n.Key, nibbles[:len(n.Key)]) {
			return nil, n, nil
		}
		v, newVal, err := t.tryGet(n.Val, nibbles[len(n.Key):], append(path, n.Key...))
		if err != nil {
			return nil, n, err
		}
		n.Val = newVal
		return v, n, nil
	case *fullNode:
		if len(nibbles) == 0 {
			v, newVal, err := t.tryGet(n.Children[16], nil, path)
			n.Children[16] = newVal
			return v, n, err
		}
		child := n.Children[nibbles[0]]
		v, newChild, err := t.tryGet(child, nibbles[1:], append(path, nibbles[0]))
		if err != nil {
			return nil, n, err
		}
		n.Children[nibbles[0]] = newChild
		return v, n, nil
	case hashNode:
		resolved, err := t.resolveHash(n, path)
		if err != nil {
			return nil, n, err
		}
		return t.tryGet(resolved, nibbles, path)
	default:
		return nil, n, fmt.Errorf("trie: tryGet: unexpected node type %T", n)
	}
}

// Update sets key to value, panicking on unresolvable trie corruption.
func (t *Trie) Update(k, v []byte) {
	if err := t.TryUpdate(k, v); err != nil {
		panic(err)
	}
}

// TryUpdate sets key to value. An empty value is equivalent to TryDelete.
func (t *Trie) TryUpdate(k, v []byte) error {
	if len(v) == 0 {
		return t.TryDelete(k)
	}
	newRoot, err := t.insert(t.root, keyBytesToNibbles(k), valueNode(v), nil)
	if err != nil {
		return err
	}
	t.root = newRoot
	return nil
}

func (t *Trie) insert(n node, nibbles []byte, value node, path []byte) (node, error) {
	if len(nibbles) == 0 {
		if vn, ok := n.(valueNode); ok {
			_ = vn
		}
		return value, nil
	}
	switch n := n.(type) {
	case nil:
		return &shortNode{Key: nibbles, Val: value}, nil
	case *shortNode:
		matchlen := commonPrefixLen(nibbles, n.Key)
		if matchlen == len(n.Key) {
			newVal, err := t.insert(n.Val, nibbles[matchlen:], value, append(path, nibbles[:matchlen]...))
			if err != nil {
				return nil, err
			}
			return &shortNode{Key: n.Key, Val: newVal}, nil
		}
		branch := &fullNode{}
		var err error
		branch.Children[n.Key[matchlen]], err = t.insert(nil, n.Key[matchlen+1:], n.Val, nil)
		if err != nil {
			return nil, err
		}
		branch.Children[nibbles[matchlen]], err = t.insert(nil, nibbles[matchlen+1:], value, nil)
		if err != nil {
			return nil, err
		}
		if matchlen == 0 {
			return branch, nil
		}
		return &shortNode{Key: nibbles[:matchlen], Val: branch}, nil
	case *fullNode:
		cp := *n
		var err error
		cp.Children[nibbles[0]], err = t.insert(n.Children[nibbles[0]], nibbles[1:], value, append(path, nibbles[0]))
		if err != nil {
			return nil, err
		}
		return &cp, nil
	case hashNode:
		resolved, err := t.resolveHash(n, path)
		if err != nil {
			return nil, err
		}
		return t.insert(resolved, nibbles, value, path)
	default:
		return nil, fmt.Errorf("trie: insert: unexpected node type %T", n)
	}
}

// Delete removes key, panicking on unresolvable trie corruption.
func (t *Trie) Delete(k []byte) {
	if err := t.TryDelete(k); err != nil {
		panic(err)
	}
}

// TryDelete removes key. Deleting an absent key is a no-op.
func (t *Trie) TryDelete(k []byte) error {
	newRoot, err := t.delete(t.root, keyBytesToNibbles(k), nil)
	if err != nil {
		return err
	}
	t.root = newRoot
	return nil
}

func (t *Trie) delete(n node, nibbles []byte, path []byte) (node, error) {
	switch n := n.(type) {
	case nil:
		return nil, nil
	case valueNode:
		if len(nibbles) == 0 {
			return nil, nil
		}
		return n, nil
	case *shortNode:
		matchlen := commonPrefixLen(nibbles, n.Key)
		if matchlen < len(n.Key) {
			return n, nil // key not present
		}
		newVal, err := t.delete(n.Val, nibbles[matchlen:], append(path, n.Key...))
		if err != nil {
			return nil, err
		}
		if newVal == nil {
			return nil, nil
		}
		if child, ok := newVal.(*shortNode); ok {
			return &shortNode{Key: append(append([]byte{}, n.Key...), child.Key...), Val: child.Val}, nil
		}
		return &shortNode{Key: n.Key, Val: newVal}, nil
	case *fullNode:
		cp := *n
		if len(nibbles) == 0 {
			cp.Children[16] = nil
		} else {
			newChild, err := t.delete(n.Children[nibbles[0]], nibbles[1:], append(path, nibbles[0]))
			if err != nil {
				return nil, err
			}
			cp.Children[nibbles[0]] = newChild
		}
		return collapseFullNode(&cp), nil
	case hashNode:
		resolved, err := t.resolveHash(n, path)
		if err != nil {
			return nil, err
		}
		return t.delete(resolved, nibbles, path)
	default:
		return nil, fmt.Errorf("trie: delete: unexpected node type %T", n)
	}
}

// collapseFullNode simplifies a fullNode with at most one remaining
// branch (plus possibly a terminal value) into a shortNode, preserving
// the canonical shape invariant that drives deterministic hashing.
func collapseFullNode(n *fullNode) node {
	count, pos := 0, -1
	for i := 0; i < 16; i++ {
		if n.Children[i] != nil {
			count++
			pos = i
		}
	}
	if count == 0 {
		if n.Children[16] != nil {
			return n.Children[16]
		}
		return nil
	}
	if count == 1 && n.Children[16] == nil {
		child := n.Children[pos]
		if sn, ok := child.(*shortNode); ok {
			return &shortNode{Key: append([]byte{byte(pos)}, sn.Key...), Val: sn.Val}
		}
		return &shortNode{Key: []byte{byte(pos)}, Val: child}
	}
	return n
}

// Hash returns the trie's current root content address without
// persisting anything to the backing Database.
func (t *Trie) Hash() key.Address {
	if t.root == nil {
		return emptyRoot
	}
	hashed, _, err := t.hashAndCollapse(t.root)
	if err != nil {
		panic(err)
	}
	var a key.Address
	if hn, ok := hashed.(hashNode); ok {
		copy(a[:], hn)
	} else {
		h, _, err := hashOf(hashed)
		if err != nil {
			panic(err)
		}
		copy(a[:], h)
	}
	return a
}

// Commit persists every newly created node reachable from the current
// root and returns the resulting content address.
func (t *Trie) Commit() (key.Address, error) {
	if t.root == nil {
		return emptyRoot, nil
	}
	hashed, err := t.commit(t.root)
	if err != nil {
		return key.Address{}, err
	}
	t.root = hashed
	var a key.Address
	if hn, ok := hashed.(hashNode); ok {
		copy(a[:], hn)
	}
	return a, nil
}

// commit recursively hashes and persists n, replacing resolved children
// with hashNode references as it goes (hash-and-store, bottom-up).
func (t *Trie) commit(n node) (node, error) {
	switch n := n.(type) {
	case nil, valueNode, hashNode:
		return n, nil
	case *shortNode:
		child, err := t.commit(n.Val)
		if err != nil {
			return nil, err
		}
		collapsed := &shortNode{Key: n.Key, Val: child}
		return t.storeNode(collapsed)
	case *fullNode:
		cp := &fullNode{}
		for i, c := range n.Children {
			child, err := t.commit(c)
			if err != nil {
				return nil, err
			}
			cp.Children[i] = child
		}
		return t.storeNode(cp)
	default:
		return nil, fmt.Errorf("trie: commit: unexpected node type %T", n)
	}
}

func (t *Trie) storeNode(n node) (node, error) {
	h, enc, err := hashOf(n)
	if err != nil {
		return nil, err
	}
	if err := t.db.Put([]byte(h), enc); err != nil {
		return nil, err
	}
	return h, nil
}

// hashAndCollapse is Hash's non-persisting counterpart: it computes the
// same content address commit would, without writing to the Database.
func (t *Trie) hashAndCollapse(n node) (node, []byte, error) {
	switch n := n.(type) {
	case nil:
		return nil, nil, nil
	case valueNode, hashNode:
		return n, nil, nil
	case *shortNode:
		child, _, err := t.hashAndCollapse(n.Val)
		if err != nil {
			return nil, nil, err
		}
		h, enc, err := hashOf(&shortNode{Key: n.Key, Val: child})
		return h, enc, err
	case *fullNode:
		cp := &fullNode{}
		for i, c := range n.Children {
			child, _, err := t.hashAndCollapse(c)
			if err != nil {
				return nil, nil, err
			}
			cp.Children[i] = child
		}
		h, enc, err := hashOf(cp)
		return h, enc, err
	default:
		return nil, nil, fmt.Errorf("trie: hash: unexpected node type %T", n)
	}
}

// keyBytesToNibbles splits k into its 4-bit nibble sequence, most
// significant nibble first.
func keyBytesToNibbles(k []byte) []byte {
	nibbles := make([]byte, len(k)*2)
	for i, b := range k {
		nibbles[i*2] = b >> 4
		nibbles[i*2+1] = b & 0x0f
	}
	return nibbles
}

func commonPrefixLen(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}
