/*
Package domain contains the core domain models of the detail tree engine.

It defines the vocabulary shared by the engine, its ports and its adapters: class and
field declarations, template nodes, row identity (PathKey), rows and their variants,
expansion states and change notifications. This package is kept pure and free of
external dependencies like I/O or persistence, following Hexagonal Architecture
principles.

# Key Entities

  - ClassDef / FieldDef: the declared shape of domain entities (typed fields, owned
    objects, ordered and unordered collections).
  - TemplateNode: a declarative description of what to show for a class.
  - PathKey: the identity of a row, derived from template nodes and entity ids from the
    root to the row.
  - Row: one bound line of the detail tree (Real, Dummy, Ghost or Error variant).
  - ExpansionState: the expand/collapse state of a row with children.
*/
package domain
