package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/lifecycle"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/aretw0/pipeprep"
	"github.com/aretw0/pipeprep/pkg/domain"
	"github.com/aretw0/pipeprep/pkg/preview"
	"github.com/aretw0/pipeprep/pkg/sourcestore"
)

const datasourcesURI = "pipeprep://datasources"

// Service defines the session operations exposed as MCP tools.
// *pipeprep.Service satisfies it.
type Service interface {
	Datasources(ctx context.Context) ([]domain.DatasourceOption, error)
	Create(ctx context.Context) (*pipeprep.View, error)
	Get(ctx context.Context, id string) (*pipeprep.View, error)
	SelectDatasource(ctx context.Context, id, nodeID string) (*pipeprep.View, error)
	ChangeCredential(ctx context.Context, id, credentialID string) (*pipeprep.View, error)
	UpdateSources(ctx context.Context, id string, patch sourcestore.Patch) (*pipeprep.View, error)
	Next(ctx context.Context, id string) (*pipeprep.View, error)
	Back(ctx context.Context, id string) (*pipeprep.View, error)
	LoadParams(ctx context.Context, id string) ([]domain.Variable, bool, error)
	Process(ctx context.Context, id string, inputs map[string]any) (string, error)
	Preview(outputs *domain.PreviewOutputs, limit int) (domain.PreviewChunks, error)
}

var _ Service = (*pipeprep.Service)(nil)

// DatasourcesResponse lists the selectable datasources of the pipeline.
type DatasourcesResponse struct {
	Datasources []domain.DatasourceOption `json:"datasources" jsonschema_description:"Selectable datasource nodes in graph order"`
}

// ParamsResponse carries the processing variables of the active datasource.
type ParamsResponse struct {
	Variables []domain.Variable `json:"variables" jsonschema_description:"Processing variables of the active datasource"`
	Applied   bool              `json:"applied" jsonschema_description:"False when a newer datasource switch made the response stale"`
}

// ProcessResponse carries the id of a dispatched run.
type ProcessResponse struct {
	RunID string `json:"run_id" jsonschema_description:"Identifier of the dispatched test run"`
}

type sessionArgs struct {
	SessionID string `json:"session_id"`
}

type selectArgs struct {
	SessionID string `json:"session_id"`
	NodeID    string `json:"node_id"`
}

type credentialArgs struct {
	SessionID    string `json:"session_id"`
	CredentialID string `json:"credential_id"`
}

type sourcesArgs struct {
	SessionID string `json:"session_id"`
	Patch     string `json:"patch"`
}

type processArgs struct {
	SessionID string `json:"session_id"`
	Inputs    string `json:"inputs"`
}

type previewArgs struct {
	Outputs string `json:"outputs"`
	Limit   int    `json:"limit"`
}

// Server wraps the preparation service and exposes it as an MCP Server.
type Server struct {
	svc       Service
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP Server instance.
func NewServer(svc Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		svc:       svc,
		logger:    logger,
		mcpServer: server.NewMCPServer("pipeprep-mcp", pipeprep.Version),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on the given port using SSE.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	serverErrors := make(chan error, 1)

	lifecycle.Go(ctx, func(ctx context.Context) error {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
		return nil
	})

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Info("Shutdown signal received, stopping MCP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	sessionID := mcp.WithString("session_id", mcp.Required(), mcp.Description("Preparation session ID"))

	s.mcpServer.AddTool(mcp.NewTool("list_datasources",
		mcp.WithDescription("List the datasource nodes of the pipeline that can start a test run."),
		mcp.WithOutputSchema[DatasourcesResponse](),
	), mcp.NewStructuredToolHandler(s.handleListDatasources))

	s.mcpServer.AddTool(mcp.NewTool("create_session",
		mcp.WithDescription("Start a preparation session. The first datasource is selected automatically."),
		mcp.WithOutputSchema[pipeprep.View](),
	), mcp.NewStructuredToolHandler(s.handleCreateSession))

	s.mcpServer.AddTool(mcp.NewTool("get_session",
		mcp.WithDescription("Get a preparation session and whether it can move on."),
		sessionID,
		mcp.WithOutputSchema[pipeprep.View](),
	), mcp.NewStructuredToolHandler(s.handleGetSession))

	s.mcpServer.AddTool(mcp.NewTool("select_datasource",
		mcp.WithDescription("Switch the active datasource. The previous selection is cleared."),
		sessionID,
		mcp.WithString("node_id", mcp.Required(), mcp.Description("Datasource node ID from list_datasources")),
		mcp.WithOutputSchema[pipeprep.View](),
	), mcp.NewStructuredToolHandler(s.handleSelectDatasource))

	s.mcpServer.AddTool(mcp.NewTool("change_credential",
		mcp.WithDescription("Change the credential of the active datasource. The selection is cleared."),
		sessionID,
		mcp.WithString("credential_id", mcp.Required(), mcp.Description("Credential ID")),
		mcp.WithOutputSchema[pipeprep.View](),
	), mcp.NewStructuredToolHandler(s.handleChangeCredential))

	s.mcpServer.AddTool(mcp.NewTool("update_sources",
		mcp.WithDescription("Update the datasource selection, e.g. selected_file_ids or website_pages."),
		sessionID,
		mcp.WithString("patch", mcp.Required(), mcp.Description("JSON object with the selection fields to set")),
		mcp.WithOutputSchema[pipeprep.View](),
	), mcp.NewStructuredToolHandler(s.handleUpdateSources))

	s.mcpServer.AddTool(mcp.NewTool("next_step",
		mcp.WithDescription("Move to document processing once the selection is ready."),
		sessionID,
		mcp.WithOutputSchema[pipeprep.View](),
	), mcp.NewStructuredToolHandler(s.handleNext))

	s.mcpServer.AddTool(mcp.NewTool("previous_step",
		mcp.WithDescription("Go back to datasource selection."),
		sessionID,
		mcp.WithOutputSchema[pipeprep.View](),
	), mcp.NewStructuredToolHandler(s.handleBack))

	s.mcpServer.AddTool(mcp.NewTool("load_params",
		mcp.WithDescription("Fetch the processing variables of the active datasource."),
		sessionID,
		mcp.WithOutputSchema[ParamsResponse](),
	), mcp.NewStructuredToolHandler(s.handleLoadParams))

	s.mcpServer.AddTool(mcp.NewTool("process",
		mcp.WithDescription("Validate the inputs and dispatch a test run of the pipeline."),
		sessionID,
		mcp.WithString("inputs", mcp.Description("JSON object of processing inputs")),
		mcp.WithOutputSchema[ProcessResponse](),
	), mcp.NewStructuredToolHandler(s.handleProcess))

	s.mcpServer.AddTool(mcp.NewTool("preview_chunks",
		mcp.WithDescription("Render the outputs of a test run as a bounded chunk preview."),
		mcp.WithString("outputs", mcp.Required(), mcp.Description("JSON run outputs with chunk_structure and preview or qa_preview")),
		mcp.WithNumber("limit", mcp.Description("Maximum chunks to show")),
	), s.handlePreview)
}

func (s *Server) handleListDatasources(ctx context.Context, request mcp.CallToolRequest, args struct{}) (DatasourcesResponse, error) {
	options, err := s.svc.Datasources(ctx)
	if err != nil {
		return DatasourcesResponse{}, fmt.Errorf("list datasources: %w", err)
	}
	return DatasourcesResponse{Datasources: options}, nil
}

func (s *Server) handleCreateSession(ctx context.Context, request mcp.CallToolRequest, args struct{}) (pipeprep.View, error) {
	return deref(s.svc.Create(ctx))
}

func (s *Server) handleGetSession(ctx context.Context, request mcp.CallToolRequest, args sessionArgs) (pipeprep.View, error) {
	return deref(s.svc.Get(ctx, args.SessionID))
}

func (s *Server) handleSelectDatasource(ctx context.Context, request mcp.CallToolRequest, args selectArgs) (pipeprep.View, error) {
	return deref(s.svc.SelectDatasource(ctx, args.SessionID, args.NodeID))
}

func (s *Server) handleChangeCredential(ctx context.Context, request mcp.CallToolRequest, args credentialArgs) (pipeprep.View, error) {
	return deref(s.svc.ChangeCredential(ctx, args.SessionID, args.CredentialID))
}

func (s *Server) handleUpdateSources(ctx context.Context, request mcp.CallToolRequest, args sourcesArgs) (pipeprep.View, error) {
	var patch sourcestore.Patch
	if err := json.Unmarshal([]byte(args.Patch), &patch); err != nil {
		return pipeprep.View{}, fmt.Errorf("invalid patch: %w", err)
	}
	return deref(s.svc.UpdateSources(ctx, args.SessionID, patch))
}

func (s *Server) handleNext(ctx context.Context, request mcp.CallToolRequest, args sessionArgs) (pipeprep.View, error) {
	return deref(s.svc.Next(ctx, args.SessionID))
}

func (s *Server) handleBack(ctx context.Context, request mcp.CallToolRequest, args sessionArgs) (pipeprep.View, error) {
	return deref(s.svc.Back(ctx, args.SessionID))
}

func (s *Server) handleLoadParams(ctx context.Context, request mcp.CallToolRequest, args sessionArgs) (ParamsResponse, error) {
	vars, applied, err := s.svc.LoadParams(ctx, args.SessionID)
	if err != nil {
		return ParamsResponse{}, err
	}
	return ParamsResponse{Variables: vars, Applied: applied}, nil
}

func (s *Server) handleProcess(ctx context.Context, request mcp.CallToolRequest, args processArgs) (ProcessResponse, error) {
	var inputs map[string]any
	if args.Inputs != "" {
		if err := json.Unmarshal([]byte(args.Inputs), &inputs); err != nil {
			return ProcessResponse{}, fmt.Errorf("invalid inputs: %w", err)
		}
	}
	runID, err := s.svc.Process(ctx, args.SessionID, inputs)
	if err != nil {
		s.logger.Warn("MCP Process: Dispatch refused", "session_id", args.SessionID, "error", err)
		return ProcessResponse{}, err
	}
	return ProcessResponse{RunID: runID}, nil
}

func (s *Server) handlePreview(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args previewArgs
	if err := request.BindArguments(&args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	var outputs domain.PreviewOutputs
	if err := json.Unmarshal([]byte(args.Outputs), &outputs); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid outputs: %v", err)), nil
	}
	chunks, err := s.svc.Preview(&outputs, args.Limit)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(preview.Render(chunks)), nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(datasourcesURI, "Pipeline Datasources",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		options, err := s.svc.Datasources(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list datasources: %w", err)
		}
		jsonBytes, _ := json.Marshal(options)

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      datasourcesURI,
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}

func deref(view *pipeprep.View, err error) (pipeprep.View, error) {
	if err != nil {
		return pipeprep.View{}, err
	}
	return *view, nil
}
