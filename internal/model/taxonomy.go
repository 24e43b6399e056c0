package model

import "time"

// TaxonomyKind selects one of the two classification trees.
type TaxonomyKind string

const (
	TaxonomyCategory TaxonomyKind = "category"
	TaxonomyType     TaxonomyKind = "type"
)

func (k TaxonomyKind) Valid() bool { return k == TaxonomyCategory || k == TaxonomyType }

// Table is the table holding nodes of this tree.
func (k TaxonomyKind) Table() string {
	if k == TaxonomyType {
		return "types"
	}
	return "categories"
}

// Taxonomy is a node of a self-referential category or type tree.
type Taxonomy struct {
	ID        string       `json:"id"`
	Kind      TaxonomyKind `json:"kind"`
	ParentID  *string      `json:"parent_id,omitempty"`
	Name      string       `json:"name"`
	Slug      string       `json:"slug"`
	CreatedAt time.Time    `json:"created_at"`
	Children  []*Taxonomy  `json:"children,omitempty"`
}

// BuildTree links flat nodes into a forest. Nodes whose parent is missing become roots.
func BuildTree(nodes []Taxonomy) []*Taxonomy {
	index := make(map[string]*Taxonomy, len(nodes))
	for i := range nodes {
		n := nodes[i]
		n.Children = nil
		index[n.ID] = &n
	}
	roots := make([]*Taxonomy, 0)
	for i := range nodes {
		n := index[nodes[i].ID]
		if n.ParentID != nil {
			if p, ok := index[*n.ParentID]; ok && p != n {
				p.Children = append(p.Children, n)
				continue
			}
		}
		roots = append(roots, n)
	}
	return roots
}

// Ancestors returns the ids on the path from id up to its root, id excluded.
// A cycle in the data stops the walk.
func Ancestors(id string, parents map[string]*string) []string {
	var out []string
	seen := map[string]bool{id: true}
	cur := parents[id]
	for cur != nil {
		if seen[*cur] {
			break
		}
		seen[*cur] = true
		out = append(out, *cur)
		cur = parents[*cur]
	}
	return out
}

// Descendants returns id and every node below it.
func Descendants(id string, parents map[string]*string) []string {
	children := make(map[string][]string, len(parents))
	for child, p := range parents {
		if p != nil {
			children[*p] = append(children[*p], child)
		}
	}
	out := []string{id}
	seen := map[string]bool{id: true}
	for i := 0; i < len(out); i++ {
		for _, c := range children[out[i]] {
			if !seen[c] {
				seen[c] = true
				out = append(out, c)
			}
		}
	}
	return out
}
