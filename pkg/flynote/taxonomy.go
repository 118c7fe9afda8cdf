package flynote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrNoRoot reports that no flynote taxonomy root is configured; the
// extractor cannot run without one.
var ErrNoRoot = errors.New("flynote: no taxonomy root configured")

// TaxonomyNode is a node of the topic tree. Children are unique per
// parent by slug; names keep their original casing.
type TaxonomyNode struct {
	ID       int64
	ParentID int64 // 0 for a root
	Name     string
	Slug     string
}

// TaxonomyStore persists the topic tree and judgment memberships.
type TaxonomyStore interface {
	// RootNode returns the root with the given slug, or nil when absent.
	RootNode(ctx context.Context, slug string) (*TaxonomyNode, error)

	// ChildBySlug returns the child of parentID with the given slug, or
	// nil when absent.
	ChildBySlug(ctx context.Context, parentID int64, slug string) (*TaxonomyNode, error)

	// CreateChild adds a child topic under parentID.
	CreateChild(ctx context.Context, parentID int64, name, slug string) (*TaxonomyNode, error)

	// ClearMemberships removes the judgment's memberships on descendants
	// of rootID.
	ClearMemberships(ctx context.Context, judgmentID, rootID int64) error

	// AddMembership attaches the judgment to a node. Adding an existing
	// membership is a no-op.
	AddMembership(ctx context.Context, judgmentID, nodeID int64) error
}

// Extractor reconciles parsed flynote paths against the taxonomy tree
// under a configured root. Re-running it on the same input converges: no
// duplicate nodes, no duplicate memberships.
type Extractor struct {
	store    TaxonomyStore
	rootSlug string
	log      *slog.Logger
}

// NewExtractor creates an Extractor rooted at the topic with rootSlug.
func NewExtractor(store TaxonomyStore, rootSlug string, log *slog.Logger) *Extractor {
	if log == nil {
		log = slog.Default()
	}
	return &Extractor{store: store, rootSlug: rootSlug, log: log}
}

// Extract parses the judgment's flynote, rebuilds its memberships under
// the root, and returns the leaf nodes the judgment was attached to.
// Existing children are reused when their slug matches a path segment;
// missing ones are created with the segment's original name.
func (e *Extractor) Extract(ctx context.Context, judgmentID int64, flynote string) ([]*TaxonomyNode, error) {
	if e.rootSlug == "" {
		return nil, ErrNoRoot
	}
	root, err := e.store.RootNode(ctx, e.rootSlug)
	if err != nil {
		return nil, fmt.Errorf("flynote: loading root %q: %w", e.rootSlug, err)
	}
	if root == nil {
		return nil, fmt.Errorf("%w: %q", ErrNoRoot, e.rootSlug)
	}

	if err := e.store.ClearMemberships(ctx, judgmentID, root.ID); err != nil {
		return nil, fmt.Errorf("flynote: clearing memberships of judgment %d: %w", judgmentID, err)
	}

	paths := ParsePaths(flynote)
	leaves := make([]*TaxonomyNode, 0, len(paths))
	for _, path := range paths {
		node := root
		for _, name := range path {
			slug := Slugify(name)
			if slug == "" {
				continue
			}
			child, err := e.store.ChildBySlug(ctx, node.ID, slug)
			if err != nil {
				return nil, fmt.Errorf("flynote: walking %q: %w", name, err)
			}
			if child == nil {
				child, err = e.store.CreateChild(ctx, node.ID, name, slug)
				if err != nil {
					return nil, fmt.Errorf("flynote: creating %q: %w", name, err)
				}
			}
			node = child
		}
		if node == root {
			continue
		}
		if err := e.store.AddMembership(ctx, judgmentID, node.ID); err != nil {
			return nil, fmt.Errorf("flynote: attaching judgment %d to %q: %w", judgmentID, node.Name, err)
		}
		leaves = append(leaves, node)
	}

	e.log.Debug("flynote extracted", "judgment", judgmentID, "paths", len(paths))
	return leaves, nil
}
