/*
Package domain contains the core models of a pipeline test-run preparation.

It defines the entities shared by the preparation state machine, the
per-source selection store and the chunk preview formatter. This package is
kept pure and free of external dependencies like I/O or persistence,
following Hexagonal Architecture principles.

# Key Entities

  - Datasource: A selectable ingestion node of the pipeline graph, tagged by DatasourceKind.
  - SourceState: The transient, kind-specific selection (files, pages, crawled sites, drive files).
  - Session: The persisted snapshot of one preparation (step, datasource, selection).
  - RunRequest: The payload handed to the run dispatcher when the user processes.
  - PreviewOutputs / PreviewChunks: The raw run output and its bounded, UI-ready preview.
*/
package domain
