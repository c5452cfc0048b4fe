// Package renderer turns tree mutations into terminal output.
//
// The renderer is responsible for:
//   - Collapsing every mutation notification of one scheduling quantum into
//     a single serialization pass
//   - Flattening the tree to text (comments suppressed)
//   - Suppressing writes whose text equals the last write
//   - Handing sink failures to a fatal error hook
//
// Architecture:
//
//	┌─────────────────────────────────────────┐
//	│   Reconciler (component) via NodeOps    │
//	├─────────────────────────────────────────┤
//	│   tree.Ops  ──notify──▶  Renderer       │
//	│                          (pending flag) │
//	├─────────────────────────────────────────┤
//	│   loop.Deferrer (end of quantum)        │
//	├─────────────────────────────────────────┤
//	│   backend.Sink: Line │ Screen (tcell)   │
//	└─────────────────────────────────────────┘
//
// Usage:
//
//	l := loop.New()
//	r := renderer.New(sink, l, renderer.DefaultOptions())
//	ops := tree.NewOps(r)
//	root := ops.CreateRoot()
//	ops.Insert(ops.CreateText("hello"), root, nil) // flushed once when the quantum ends
package renderer
