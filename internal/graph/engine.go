package graph

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
)

// Key layout:
//
//	n:<nodeID>                      -> JSON(Node)
//	e:<edgeID>                      -> JSON(Edge)
//	l:<label>\x00<nodeID>           -> empty (label index)
//	o:<fromID>\x00<type>\x00<edgeID> -> <toID> (outgoing adjacency)
//	i:<toID>\x00<type>\x00<edgeID>   -> <fromID> (incoming adjacency)
const (
	prefixNode     = "n:"
	prefixEdge     = "e:"
	prefixLabel    = "l:"
	prefixOutgoing = "o:"
	prefixIncoming = "i:"
	sep            = "\x00"
)

// Engine is a BadgerDB-backed graph store. All operations are transactional
// and safe for concurrent use.
type Engine struct {
	db *badger.DB
}

// Open opens (or creates) a persistent graph store at path.
func Open(path string) (*Engine, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open graph store: %w", err)
	}
	return &Engine{db: db}, nil
}

// OpenInMemory opens a non-persistent store. Used by tests and local runs
// seeded at startup.
func OpenInMemory() (*Engine, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open in-memory graph store: %w", err)
	}
	return &Engine{db: db}, nil
}

// Close releases the underlying database.
func (e *Engine) Close() error {
	return e.db.Close()
}

// PutNode creates or replaces a node and maintains the label index.
func (e *Engine) PutNode(n *Node) error {
	if n == nil || n.ID == "" || n.Label == "" {
		return ErrInvalidNode
	}
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal node %s: %w", n.ID, err)
	}
	return e.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(nodeKey(n.ID), data); err != nil {
			return err
		}
		return txn.Set(labelKey(n.Label, n.ID), nil)
	})
}

// GetNode fetches a node by id.
func (e *Engine) GetNode(id NodeID) (*Node, error) {
	var n Node
	err := e.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(nodeKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &n)
		})
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, fmt.Errorf("node %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get node %s: %w", id, err)
	}
	return &n, nil
}

// NodesByLabel returns all nodes carrying the given label, in key order.
func (e *Engine) NodesByLabel(label string) ([]*Node, error) {
	var ids []NodeID
	prefix := []byte(prefixLabel + label + sep)
	err := e.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().Key()
			ids = append(ids, NodeID(bytes.TrimPrefix(key, prefix)))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan label %s: %w", label, err)
	}

	nodes := make([]*Node, 0, len(ids))
	for _, id := range ids {
		n, err := e.GetNode(id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue // index entry outlived the node
			}
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

// PutEdge creates or replaces an edge and maintains both adjacency indexes.
// Both endpoints must exist.
func (e *Engine) PutEdge(edge *Edge) error {
	if edge == nil || edge.ID == "" || edge.From == "" || edge.To == "" || edge.Type == "" {
		return ErrInvalidEdge
	}
	data, err := json.Marshal(edge)
	if err != nil {
		return fmt.Errorf("marshal edge %s: %w", edge.ID, err)
	}
	return e.db.Update(func(txn *badger.Txn) error {
		for _, id := range []NodeID{edge.From, edge.To} {
			if _, err := txn.Get(nodeKey(id)); err != nil {
				if errors.Is(err, badger.ErrKeyNotFound) {
					return fmt.Errorf("%w: endpoint %s", ErrInvalidEdge, id)
				}
				return err
			}
		}
		if err := txn.Set(edgeKey(edge.ID), data); err != nil {
			return err
		}
		if err := txn.Set(adjKey(prefixOutgoing, edge.From, edge.Type, edge.ID), []byte(edge.To)); err != nil {
			return err
		}
		return txn.Set(adjKey(prefixIncoming, edge.To, edge.Type, edge.ID), []byte(edge.From))
	})
}

// Outgoing returns edges leaving from, optionally restricted to the given
// types. Results are in key order, so traversal is deterministic.
func (e *Engine) Outgoing(from NodeID, types ...EdgeType) ([]*Edge, error) {
	if len(types) == 0 {
		return e.scanAdjacency(prefixOutgoing, from, "")
	}
	var edges []*Edge
	for _, t := range types {
		part, err := e.scanAdjacency(prefixOutgoing, from, t)
		if err != nil {
			return nil, err
		}
		edges = append(edges, part...)
	}
	return edges, nil
}

// Incoming returns edges arriving at to, optionally restricted by type.
func (e *Engine) Incoming(to NodeID, types ...EdgeType) ([]*Edge, error) {
	if len(types) == 0 {
		return e.scanAdjacency(prefixIncoming, to, "")
	}
	var edges []*Edge
	for _, t := range types {
		part, err := e.scanAdjacency(prefixIncoming, to, t)
		if err != nil {
			return nil, err
		}
		edges = append(edges, part...)
	}
	return edges, nil
}

func (e *Engine) scanAdjacency(kind string, node NodeID, t EdgeType) ([]*Edge, error) {
	prefix := kind + string(node) + sep
	if t != "" {
		prefix += string(t) + sep
	}

	var edges []*Edge
	err := e.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			parts := bytes.Split(it.Item().Key(), []byte(sep))
			if len(parts) < 3 {
				continue
			}
			id := EdgeID(parts[len(parts)-1])
			edge, err := e.getEdge(txn, id)
			if err != nil {
				if errors.Is(err, badger.ErrKeyNotFound) {
					continue
				}
				return err
			}
			edges = append(edges, edge)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan adjacency %s: %w", node, err)
	}
	return edges, nil
}

func (e *Engine) getEdge(txn *badger.Txn, id EdgeID) (*Edge, error) {
	item, err := txn.Get(edgeKey(id))
	if err != nil {
		return nil, err
	}
	var edge Edge
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &edge)
	}); err != nil {
		return nil, err
	}
	return &edge, nil
}

func nodeKey(id NodeID) []byte { return []byte(prefixNode + string(id)) }
func edgeKey(id EdgeID) []byte { return []byte(prefixEdge + string(id)) }

func labelKey(label string, id NodeID) []byte {
	return []byte(prefixLabel + label + sep + string(id))
}

func adjKey(kind string, node NodeID, t EdgeType, id EdgeID) []byte {
	return []byte(kind + string(node) + sep + string(t) + sep + string(id))
}
