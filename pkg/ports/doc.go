/*
Package ports defines the driven ports (interfaces) of the detail-tree engine.

These interfaces decouple the row builder from the systems it reads from and
writes to, allowing the engine to work with any domain model, template source
and preference backend.

# Key Interfaces

  - Repository / UnitOfWork: typed field access to the live domain entity graph and
    the transaction scope used to create ghost targets.
  - Metadata: class hierarchy and field signatures.
  - TemplateSource: layout and part definitions (e.g., from Loam or Memory).
  - ChangeNotifier: change notifications fired by the repository after a commit.
  - PrefsStore: persisted per-view preferences.
  - DistributedLocker: distributed locking for views shared across instances.
*/
package ports
