/* Copyright 2019 Comcast Cable Communications Management, LLC
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package core

import (
	"fmt"
	"sort"
)

// node is an arena slot.  The Entity's Children are always nil here;
// the child lists are the ids in children.
type node struct {
	e        *Entity
	parent   string // Empty for members of a root list.
	group    string // Child group or root list id.
	children map[string][]string
}

type root struct {
	spec ListSpec
	ids  []string
}

// Tree is the arena that holds a control's Entities.
//
// Entities are owned by exactly one list at a time, and every
// operation that could create a cycle is rejected.
//
// Not safe for concurrent use.
type Tree struct {
	// Registry (optional) provides the Definitions that the
	// capability rules need.
	Registry Registry

	roots map[string]*root
	nodes map[string]*node
}

// NewTree makes an empty Tree.
func NewTree(reg Registry) *Tree {
	return &Tree{
		Registry: reg,
		roots:    make(map[string]*root, 4),
		nodes:    make(map[string]*node, 32),
	}
}

// DeclareRoot adds an empty root list.
func (t *Tree) DeclareRoot(id string, spec ListSpec) error {
	if _, have := t.roots[id]; have {
		return fmt.Errorf("%w: root %q", IdExists, id)
	}
	t.roots[id] = &root{
		spec: spec,
		ids:  make([]string, 0, 8),
	}
	return nil
}

// HasRoot reports whether the root list exists.
func (t *Tree) HasRoot(id string) bool {
	_, have := t.roots[id]
	return have
}

// RootSpec returns the ListSpec of a root list.
func (t *Tree) RootSpec(id string) (ListSpec, bool) {
	r, have := t.roots[id]
	if !have {
		return ListSpec{}, false
	}
	return r.spec, true
}

// Roots returns the ids of the root lists in a stable order.
func (t *Tree) Roots() []string {
	acc := make([]string, 0, len(t.roots))
	for id := range t.roots {
		acc = append(acc, id)
	}
	sort.Strings(acc)
	return acc
}

// RemoveRoot removes a root list and every Entity in it.
func (t *Tree) RemoveRoot(id string) error {
	r, have := t.roots[id]
	if !have {
		return fmt.Errorf("%w: root %q", NotFound, id)
	}
	for _, eid := range r.ids {
		t.forget(eid)
	}
	delete(t.roots, id)
	return nil
}

// RenameRoot gives a root list a new id.
func (t *Tree) RenameRoot(from, to string) error {
	r, have := t.roots[from]
	if !have {
		return fmt.Errorf("%w: root %q", NotFound, from)
	}
	if from == to {
		return nil
	}
	if _, have := t.roots[to]; have {
		return fmt.Errorf("%w: root %q", IdExists, to)
	}
	delete(t.roots, from)
	t.roots[to] = r
	for _, eid := range r.ids {
		t.nodes[eid].group = to
	}
	return nil
}

// Len is the number of Entities in the Tree.
func (t *Tree) Len() int {
	return len(t.nodes)
}

// Has reports whether the Entity is in the Tree.
func (t *Tree) Has(id string) bool {
	_, have := t.nodes[id]
	return have
}

// listSpec finds the ListSpec for the given parent (or root when
// parentId is empty) and group.
func (t *Tree) listSpec(parentId, group string) (ListSpec, error) {
	if parentId == "" {
		r, have := t.roots[group]
		if !have {
			return ListSpec{}, fmt.Errorf("%w: no root list %q", InvalidChildGroup, group)
		}
		return r.spec, nil
	}
	p, have := t.nodes[parentId]
	if !have {
		return ListSpec{}, entityErr(parentId, UnknownParent)
	}
	return childListSpec(p.e, group, t.Registry)
}

// list returns the id slice for the given list.  The list must
// exist (or its parent must).
func (t *Tree) list(parentId, group string) []string {
	if parentId == "" {
		return t.roots[group].ids
	}
	return t.nodes[parentId].children[group]
}

// setList writes back an id slice obtained from list.
func (t *Tree) setList(parentId, group string, ids []string) {
	if parentId == "" {
		t.roots[group].ids = ids
		return
	}
	p := t.nodes[parentId]
	if len(ids) == 0 {
		delete(p.children, group)
		return
	}
	if p.children == nil {
		p.children = make(map[string][]string, 2)
	}
	p.children[group] = ids
}

// check validates an Entity (and its Children) against a list
// without changing anything.  The ids map accumulates ids seen in
// the subtree so that a subtree can't contain the same id twice.
func (t *Tree) check(e *Entity, spec ListSpec, ids map[string]bool) error {
	if e == nil {
		return fmt.Errorf("%w: nil entity", InvalidEntity)
	}
	if err := e.Check(); err != nil {
		return err
	}
	if err := e.Options.Check(); err != nil {
		return entityErr(e.Id, err)
	}
	if err := spec.Accepts(e, Lookup(t.Registry, e)); err != nil {
		return entityErr(e.Id, err)
	}
	if e.Id != "" {
		if ids[e.Id] {
			return entityErr(e.Id, IdExists)
		}
		ids[e.Id] = true
	}
	for _, g := range SortedGroups(e.Children) {
		cs, err := childListSpec(e, g, t.Registry)
		if err != nil {
			return entityErr(e.Id, err)
		}
		for _, c := range e.Children[g] {
			if err := t.check(c, cs, ids); err != nil {
				return err
			}
		}
	}
	return nil
}

// insert puts a checked Entity (and its Children) into the arena.
// The Entity keeps its id unless that id is empty or already in use.
func (t *Tree) insert(e *Entity, parentId, group string, index int) string {
	id := e.Id
	if id == "" || t.Has(id) {
		id = NewId()
	}
	n := &node{
		e:      e.shallow(),
		parent: parentId,
		group:  group,
	}
	n.e.Id = id
	t.nodes[id] = n

	ids := t.list(parentId, group)
	t.setList(parentId, group, insertAt(ids, index, id))

	for _, g := range SortedGroups(e.Children) {
		for _, c := range e.Children[g] {
			t.insert(c, id, g, -1)
		}
	}
	return id
}

// AddChild adds the Entity (and any Children it carries) to the given
// list.  An empty parentId means the group names a root list.  A
// negative (or too large) index appends.
//
// The Entity is copied.  The id of the new Entity is returned.  If
// the Entity had no id, or if its id is already in use, it gets a new
// one.
//
// On error the Tree is unchanged.
func (t *Tree) AddChild(parentId, group string, e *Entity, index int) (string, error) {
	spec, err := t.listSpec(parentId, group)
	if err != nil {
		return "", err
	}
	if err := t.check(e, spec, make(map[string]bool)); err != nil {
		return "", err
	}
	return t.insert(e, parentId, group, index), nil
}

// detach removes the id from its list but leaves the arena alone.
func (t *Tree) detach(id string) (int, error) {
	n, have := t.nodes[id]
	if !have {
		return -1, entityErr(id, NotFound)
	}
	ids := t.list(n.parent, n.group)
	i := indexOf(ids, id)
	if i < 0 {
		return -1, fmt.Errorf("internal error: %s not in its list", id)
	}
	t.setList(n.parent, n.group, removeAt(ids, i))
	return i, nil
}

// forget deletes the Entity and all of its descendants from the
// arena.
func (t *Tree) forget(id string) {
	n, have := t.nodes[id]
	if !have {
		return
	}
	for _, g := range sortedKeys(n.children) {
		for _, c := range n.children[g] {
			t.forget(c)
		}
	}
	delete(t.nodes, id)
}

// RemoveEntity removes the Entity and, recursively, all of its
// descendants.  Removing an Entity that isn't there returns NotFound
// and changes nothing.
func (t *Tree) RemoveEntity(id string) error {
	if _, err := t.detach(id); err != nil {
		return err
	}
	t.forget(id)
	return nil
}

// IsDescendant reports whether candidate is (strictly) beneath id.
func (t *Tree) IsDescendant(id, candidate string) bool {
	n, have := t.nodes[candidate]
	for have && n.parent != "" {
		if n.parent == id {
			return true
		}
		n, have = t.nodes[n.parent]
	}
	return false
}

// MoveEntity moves the Entity (with its descendants) to the given
// list at the given index.  The index is interpreted after the Entity
// has been removed from its current list.
//
// Moving an Entity beneath itself or one of its descendants returns
// CycleDetected.  On error the Tree is unchanged.
func (t *Tree) MoveEntity(id, newParentId, newGroup string, newIndex int) error {
	n, have := t.nodes[id]
	if !have {
		return entityErr(id, NotFound)
	}
	if newParentId == id || (newParentId != "" && t.IsDescendant(id, newParentId)) {
		return entityErr(id, CycleDetected)
	}
	spec, err := t.listSpec(newParentId, newGroup)
	if err != nil {
		return err
	}
	if err := spec.Accepts(n.e, Lookup(t.Registry, n.e)); err != nil {
		return entityErr(id, err)
	}
	if _, err := t.detach(id); err != nil {
		return err
	}
	n.parent = newParentId
	n.group = newGroup
	ids := t.list(newParentId, newGroup)
	t.setList(newParentId, newGroup, insertAt(ids, newIndex, id))
	return nil
}

// Location returns the parent id (empty for a root list), the group,
// and the index of the Entity in its list.
func (t *Tree) Location(id string) (string, string, int, error) {
	n, have := t.nodes[id]
	if !have {
		return "", "", -1, entityErr(id, NotFound)
	}
	ids := t.list(n.parent, n.group)
	return n.parent, n.group, indexOf(ids, id), nil
}

// Depth is 1 for a member of a root list, 2 for its children, and so
// on.  Zero means not found.
func (t *Tree) Depth(id string) int {
	d := 0
	n, have := t.nodes[id]
	for have {
		d++
		if n.parent == "" {
			break
		}
		n, have = t.nodes[n.parent]
	}
	return d
}

// MaxDepth is the depth of the deepest Entity.
func (t *Tree) MaxDepth() int {
	max := 0
	for id := range t.nodes {
		if d := t.Depth(id); max < d {
			max = d
		}
	}
	return max
}

// export builds a nested copy of the Entity.
func (t *Tree) export(id string) *Entity {
	n := t.nodes[id]
	e := n.e.shallow()
	if 0 < len(n.children) {
		e.Children = make(map[string][]*Entity, len(n.children))
		for g, ids := range n.children {
			cs := make([]*Entity, len(ids))
			for i, cid := range ids {
				cs[i] = t.export(cid)
			}
			e.Children[g] = cs
		}
	}
	return e
}

// Find returns a (nested) copy of the Entity.
func (t *Tree) Find(id string) (*Entity, error) {
	if !t.Has(id) {
		return nil, entityErr(id, NotFound)
	}
	return t.export(id), nil
}

// Entities returns nested copies of the Entities in a root list.
func (t *Tree) Entities(rootId string) []*Entity {
	r, have := t.roots[rootId]
	if !have {
		return nil
	}
	acc := make([]*Entity, len(r.ids))
	for i, id := range r.ids {
		acc[i] = t.export(id)
	}
	return acc
}

// Load replaces the contents of a root list with the given
// Entities.  Ids are kept unless they collide.  On error the Tree is
// unchanged.
func (t *Tree) Load(rootId string, es []*Entity) error {
	r, have := t.roots[rootId]
	if !have {
		return fmt.Errorf("%w: no root list %q", InvalidChildGroup, rootId)
	}
	ids := make(map[string]bool, len(es))
	for _, e := range es {
		if err := t.check(e, r.spec, ids); err != nil {
			return err
		}
	}
	for _, eid := range r.ids {
		t.forget(eid)
	}
	r.ids = r.ids[:0]
	for _, e := range es {
		t.insert(e, "", rootId, -1)
	}
	return nil
}

// Update calls the given function on the Entity in place.  The
// function sees an Entity without Children, and it may not change the
// Entity's Id or Type.
func (t *Tree) Update(id string, f func(*Entity) error) error {
	n, have := t.nodes[id]
	if !have {
		return entityErr(id, NotFound)
	}
	tentative := n.e.shallow()
	if err := f(tentative); err != nil {
		return entityErr(id, err)
	}
	if tentative.Id != n.e.Id || tentative.Type != n.e.Type {
		return entityErr(id, fmt.Errorf("%w: id and type are immutable", InvalidEntity))
	}
	if err := tentative.Check(); err != nil {
		return entityErr(id, err)
	}
	if err := tentative.Options.Check(); err != nil {
		return entityErr(id, err)
	}
	if tentative.UpgradeIndex < n.e.UpgradeIndex {
		return entityErr(id, UpgradeIndexDecreased)
	}
	n.e = tentative
	return nil
}

// Duplicate copies the Entity (and its descendants) with fresh ids
// and puts the copy right after the original.
func (t *Tree) Duplicate(id string) (string, error) {
	parent, group, i, err := t.Location(id)
	if err != nil {
		return "", err
	}
	e := t.export(id)
	clearIds(e)
	return t.insert(e, parent, group, i+1), nil
}

func clearIds(e *Entity) {
	e.Id = ""
	for _, cs := range e.Children {
		for _, c := range cs {
			clearIds(c)
		}
	}
}

// Visit calls the function on every Entity in the arena: root lists
// in id order, then depth-first in list order.  The function sees
// the arena's Entities (without Children) and may modify fields other
// than Id and Type.
func (t *Tree) Visit(f func(e *Entity, depth int)) {
	var walk func(ids []string, depth int)
	walk = func(ids []string, depth int) {
		for _, id := range ids {
			n := t.nodes[id]
			f(n.e, depth)
			for _, g := range sortedKeys(n.children) {
				walk(n.children[g], depth+1)
			}
		}
	}
	for _, rid := range t.Roots() {
		walk(t.roots[rid].ids, 1)
	}
}

// Ids returns the ids of all Entities in the arena.
func (t *Tree) Ids() map[string]struct{} {
	acc := make(map[string]struct{}, len(t.nodes))
	for id := range t.nodes {
		acc[id] = struct{}{}
	}
	return acc
}

// Copy makes a deep copy of the Tree.  The copy shares the Registry.
func (t *Tree) Copy() *Tree {
	acc := NewTree(t.Registry)
	for id, r := range t.roots {
		acc.roots[id] = &root{
			spec: r.spec,
			ids:  append([]string(nil), r.ids...),
		}
	}
	for id, n := range t.nodes {
		m := &node{
			e:      n.e.shallow(),
			parent: n.parent,
			group:  n.group,
		}
		if n.children != nil {
			m.children = make(map[string][]string, len(n.children))
			for g, ids := range n.children {
				m.children[g] = append([]string(nil), ids...)
			}
		}
		acc.nodes[id] = m
	}
	return acc
}

func insertAt(ids []string, i int, id string) []string {
	if i < 0 || len(ids) <= i {
		return append(ids, id)
	}
	ids = append(ids, "")
	copy(ids[i+1:], ids[i:])
	ids[i] = id
	return ids
}

func removeAt(ids []string, i int) []string {
	acc := make([]string, 0, len(ids)-1)
	acc = append(acc, ids[:i]...)
	return append(acc, ids[i+1:]...)
}

func indexOf(ids []string, id string) int {
	for i, x := range ids {
		if x == id {
			return i
		}
	}
	return -1
}

func sortedKeys(m map[string][]string) []string {
	acc := make([]string, 0, len(m))
	for k := range m {
		acc = append(acc, k)
	}
	sort.Strings(acc)
	return acc
}
