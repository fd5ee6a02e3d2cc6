package pipelines

import "context"

// Lister port: fetches pipeline summaries for a product/project. The returned
// order is significant: verdict resolution is last-write-wins by position, so
// implementations must order summaries oldest first (creation time ascending).
type Lister interface {
	List(ctx context.Context, productID int64, status string) ([]Summary, error)
}

// Exporter port: triggers the upstream AI-results export job for a pipeline.
type Exporter interface {
	ExportAIResults(ctx context.Context, id PipelineID) (*JobHandle, error)
}
