/*
Package pipeprep prepares test runs of a RAG ingestion pipeline.

A test run starts with picking one of the pipeline's datasource nodes (local
files, online documents, a website crawl or an online drive), selecting items
from it, filling the processing inputs the node declares and dispatching a run
request. The chunks produced by the run are then shown as a bounded preview.

# Concept

The pipeline graph is read through a GraphSource. Each preparation is a
session driven by a state machine with two steps. The per-kind selection is
cleared whenever the datasource or its credential changes, so stale items of a
previous source never leak into a run request. Sessions are persisted through a
SessionStore and serialised per id, which lets them survive restarts and move
between replicas.

# Usage

	graph := memory.NewGraph(nodes...)

	svc, err := pipeprep.New("pipeline-1", graph,
		pipeprep.WithDispatcher(dispatcher),
		pipeprep.WithParamFetcher(console),
	)
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	view, err := svc.Create(ctx)
	if err != nil {
		log.Fatal(err)
	}

	id := view.Session.ID
	_, _ = svc.UpdateSources(ctx, id, sourcestore.Patch{SelectedFileIDs: &[]string{"f1"}})
	_, _ = svc.Next(ctx, id)

	runID, err := svc.Process(ctx, id, map[string]any{"chunk_size": 512})
	if err != nil {
		log.Fatal(err)
	}
	log.Println("dispatched", runID)
*/
package pipeprep
