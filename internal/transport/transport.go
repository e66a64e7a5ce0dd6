// Package transport wires the QueryFacade to an MCP stdio server, one tool
// per facade operation, following the teacher's AddTool/CallToolResult
// registration idiom.
package transport

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/kandrwmrtn/cplusplus-mcp/internal/cxierrors"
	"github.com/kandrwmrtn/cplusplus-mcp/internal/query"
)

// Server adapts a query.Facade to the MCP protocol over stdio.
type Server struct {
	facade *query.Facade
	server *mcp.Server
}

// NewServer builds an MCP server with every QueryFacade operation
// registered as a tool.
func NewServer(facade *query.Facade, name, version string) *Server {
	s := &Server{
		facade: facade,
		server: mcp.NewServer(&mcp.Implementation{Name: name, Version: version}, nil),
	}
	s.registerTools()
	return s
}

// Run blocks serving MCP requests over stdio until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) registerTools() {
	s.server.AddTool(&mcp.Tool{
		Name:        "set_project_directory",
		Description: "Point the indexer at a C++ project root and build its initial index.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"path": {Type: "string", Description: "Absolute or relative path to the project root"},
			},
			Required: []string{"path"},
		},
	}, s.handleSetProjectDirectory)

	s.server.AddTool(&mcp.Tool{
		Name:        "search_classes",
		Description: "Search indexed classes and structs by name pattern (case-insensitive regex).",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"pattern":      {Type: "string", Description: "Regex matched against class names"},
				"project_only": {Type: "boolean", Description: "Exclude dependency/vendored classes"},
			},
			Required: []string{"pattern"},
		},
	}, s.handleSearchClasses)

	s.server.AddTool(&mcp.Tool{
		Name:        "search_functions",
		Description: "Search indexed free functions and methods by name pattern.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"pattern":      {Type: "string", Description: "Regex matched against function/method names"},
				"project_only": {Type: "boolean", Description: "Exclude dependency/vendored functions"},
				"class_name":   {Type: "string", Description: "Restrict to methods of this class"},
			},
			Required: []string{"pattern"},
		},
	}, s.handleSearchFunctions)

	s.server.AddTool(&mcp.Tool{
		Name:        "search_symbols",
		Description: "Search both classes and functions by name pattern, optionally filtered by kind.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"pattern":      {Type: "string", Description: "Regex matched against symbol names"},
				"project_only": {Type: "boolean", Description: "Exclude dependency/vendored symbols"},
				"kinds": {
					Type:        "array",
					Items:       &jsonschema.Schema{Type: "string"},
					Description: "Restrict to these symbol kinds (class, struct, function, method)",
				},
			},
			Required: []string{"pattern"},
		},
	}, s.handleSearchSymbols)

	s.server.AddTool(&mcp.Tool{
		Name:        "get_class_info",
		Description: "Get a class's kind, location, base classes, and methods.",
		InputSchema: &jsonschema.Schema{
			Type:       "object",
			Properties: map[string]*jsonschema.Schema{"class_name": {Type: "string"}},
			Required:   []string{"class_name"},
		},
	}, s.handleGetClassInfo)

	s.server.AddTool(&mcp.Tool{
		Name:        "get_function_signature",
		Description: "Get the rendered signature(s) of a function or method by name.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"function_name": {Type: "string"},
				"class_name":    {Type: "string", Description: "Restrict to a method of this class"},
			},
			Required: []string{"function_name"},
		},
	}, s.handleGetFunctionSignature)

	s.server.AddTool(&mcp.Tool{
		Name:        "find_in_file",
		Description: "Find symbols declared in a specific file, optionally filtered by name pattern.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"file_path": {Type: "string"},
				"pattern":   {Type: "string", Description: "Regex matched against symbol names; defaults to matching everything"},
			},
			Required: []string{"file_path"},
		},
	}, s.handleFindInFile)

	s.server.AddTool(&mcp.Tool{
		Name:        "get_derived_classes",
		Description: "List classes that directly inherit from the named class.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"class_name":   {Type: "string"},
				"project_only": {Type: "boolean"},
			},
			Required: []string{"class_name"},
		},
	}, s.handleGetDerivedClasses)

	s.server.AddTool(&mcp.Tool{
		Name:        "get_class_hierarchy",
		Description: "Get the full base and derived class hierarchy for a class, cycle-safe.",
		InputSchema: &jsonschema.Schema{
			Type:       "object",
			Properties: map[string]*jsonschema.Schema{"class_name": {Type: "string"}},
			Required:   []string{"class_name"},
		},
	}, s.handleGetClassHierarchy)

	s.server.AddTool(&mcp.Tool{
		Name:        "find_callers",
		Description: "List every recorded caller of a function.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"function_name": {Type: "string"},
				"class_name":    {Type: "string"},
			},
			Required: []string{"function_name"},
		},
	}, s.handleFindCallers)

	s.server.AddTool(&mcp.Tool{
		Name:        "find_callees",
		Description: "List every function called directly by a function.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"function_name": {Type: "string"},
				"class_name":    {Type: "string"},
			},
			Required: []string{"function_name"},
		},
	}, s.handleFindCallees)

	s.server.AddTool(&mcp.Tool{
		Name:        "get_call_path",
		Description: "Find every simple call path between two functions, up to max_depth hops.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"from_function": {Type: "string"},
				"to_function":   {Type: "string"},
				"max_depth":     {Type: "integer", Description: "Default 10"},
			},
			Required: []string{"from_function", "to_function"},
		},
	}, s.handleGetCallPath)

	s.server.AddTool(&mcp.Tool{
		Name:        "refresh_project",
		Description: "Re-scan the project and re-index only the files that changed or were removed since the last index.",
		InputSchema: &jsonschema.Schema{Type: "object"},
	}, s.handleRefreshProject)

	s.server.AddTool(&mcp.Tool{
		Name:        "get_server_status",
		Description: "Report indexing state: file/class/function/call-graph counts. Safe to call before set_project_directory.",
		InputSchema: &jsonschema.Schema{Type: "object"},
	}, s.handleGetServerStatus)
}

func (s *Server) handleSetProjectDirectory(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		Path string `json:"path"`
	}
	if err := unmarshalArgs(req, &args); err != nil {
		return errorResult("set_project_directory", err), nil
	}
	result, err := s.facade.SetProjectDirectory(ctx, args.Path)
	if err != nil {
		return errorResult("set_project_directory", err), nil
	}
	return jsonResult(result)
}

func (s *Server) handleSearchClasses(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		Pattern     string `json:"pattern"`
		ProjectOnly bool   `json:"project_only"`
	}
	if err := unmarshalArgs(req, &args); err != nil {
		return errorResult("search_classes", err), nil
	}
	result, err := s.facade.SearchClasses(args.Pattern, args.ProjectOnly)
	if err != nil {
		return errorResult("search_classes", err), nil
	}
	return jsonResult(result)
}

func (s *Server) handleSearchFunctions(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		Pattern     string `json:"pattern"`
		ProjectOnly bool   `json:"project_only"`
		ClassName   string `json:"class_name"`
	}
	if err := unmarshalArgs(req, &args); err != nil {
		return errorResult("search_functions", err), nil
	}
	result, err := s.facade.SearchFunctions(args.Pattern, args.ProjectOnly, args.ClassName)
	if err != nil {
		return errorResult("search_functions", err), nil
	}
	return jsonResult(result)
}

func (s *Server) handleSearchSymbols(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		Pattern     string   `json:"pattern"`
		ProjectOnly bool     `json:"project_only"`
		Kinds       []string `json:"kinds"`
	}
	if err := unmarshalArgs(req, &args); err != nil {
		return errorResult("search_symbols", err), nil
	}
	result, err := s.facade.SearchSymbols(args.Pattern, args.ProjectOnly, args.Kinds)
	if err != nil {
		return errorResult("search_symbols", err), nil
	}
	return jsonResult(result)
}

func (s *Server) handleGetClassInfo(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		ClassName string `json:"class_name"`
	}
	if err := unmarshalArgs(req, &args); err != nil {
		return errorResult("get_class_info", err), nil
	}
	result, err := s.facade.GetClassInfo(args.ClassName)
	if err != nil {
		return errorResult("get_class_info", err), nil
	}
	return jsonResult(result)
}

func (s *Server) handleGetFunctionSignature(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		FunctionName string `json:"function_name"`
		ClassName    string `json:"class_name"`
	}
	if err := unmarshalArgs(req, &args); err != nil {
		return errorResult("get_function_signature", err), nil
	}
	result, err := s.facade.GetFunctionSignature(args.FunctionName, args.ClassName)
	if err != nil {
		return errorResult("get_function_signature", err), nil
	}
	return jsonResult(result)
}

func (s *Server) handleFindInFile(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		FilePath string `json:"file_path"`
		Pattern  string `json:"pattern"`
	}
	if err := unmarshalArgs(req, &args); err != nil {
		return errorResult("find_in_file", err), nil
	}
	if args.Pattern == "" {
		args.Pattern = ".*"
	}
	result, err := s.facade.FindInFile(args.FilePath, args.Pattern)
	if err != nil {
		return errorResult("find_in_file", err), nil
	}
	return jsonResult(result)
}

func (s *Server) handleGetDerivedClasses(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		ClassName   string `json:"class_name"`
		ProjectOnly bool   `json:"project_only"`
	}
	if err := unmarshalArgs(req, &args); err != nil {
		return errorResult("get_derived_classes", err), nil
	}
	result, err := s.facade.GetDerivedClasses(args.ClassName, args.ProjectOnly)
	if err != nil {
		return errorResult("get_derived_classes", err), nil
	}
	return jsonResult(result)
}

func (s *Server) handleGetClassHierarchy(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		ClassName string `json:"class_name"`
	}
	if err := unmarshalArgs(req, &args); err != nil {
		return errorResult("get_class_hierarchy", err), nil
	}
	result, err := s.facade.GetClassHierarchy(args.ClassName)
	if err != nil {
		return errorResult("get_class_hierarchy", err), nil
	}
	return jsonResult(result)
}

func (s *Server) handleFindCallers(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		FunctionName string `json:"function_name"`
		ClassName    string `json:"class_name"`
	}
	if err := unmarshalArgs(req, &args); err != nil {
		return errorResult("find_callers", err), nil
	}
	result, err := s.facade.FindCallers(args.FunctionName, args.ClassName)
	if err != nil {
		return errorResult("find_callers", err), nil
	}
	return jsonResult(result)
}

func (s *Server) handleFindCallees(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		FunctionName string `json:"function_name"`
		ClassName    string `json:"class_name"`
	}
	if err := unmarshalArgs(req, &args); err != nil {
		return errorResult("find_callees", err), nil
	}
	result, err := s.facade.FindCallees(args.FunctionName, args.ClassName)
	if err != nil {
		return errorResult("find_callees", err), nil
	}
	return jsonResult(result)
}

func (s *Server) handleGetCallPath(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		FromFunction string `json:"from_function"`
		ToFunction   string `json:"to_function"`
		MaxDepth     int    `json:"max_depth"`
	}
	if err := unmarshalArgs(req, &args); err != nil {
		return errorResult("get_call_path", err), nil
	}
	result, err := s.facade.GetCallPath(args.FromFunction, args.ToFunction, args.MaxDepth)
	if err != nil {
		return errorResult("get_call_path", err), nil
	}
	return jsonResult(result)
}

func (s *Server) handleRefreshProject(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	changed, err := s.facade.RefreshProject(ctx)
	if err != nil {
		return errorResult("refresh_project", err), nil
	}
	return jsonResult(map[string]int{"changed_file_count": changed})
}

func (s *Server) handleGetServerStatus(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.facade.GetServerStatus())
}

func unmarshalArgs(req *mcp.CallToolRequest, dst interface{}) error {
	if len(req.Params.Arguments) == 0 {
		return nil
	}
	return json.Unmarshal(req.Params.Arguments, dst)
}

func jsonResult(data interface{}) (*mcp.CallToolResult, error) {
	content, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal tool response: %w", err)
	}
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: string(content)}}}, nil
}

// errorResult reports a tool failure inside the result content with
// IsError set, per the MCP spec, so the caller can see and self-correct
// rather than receiving an opaque protocol-level error.
func errorResult(operation string, err error) *mcp.CallToolResult {
	payload := map[string]interface{}{
		"success":   false,
		"operation": operation,
		"error":     err.Error(),
	}
	if ce, ok := cxierrors.AsCxiError(err); ok {
		payload["kind"] = string(ce.Kind)
	}
	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(content)}},
		IsError: true,
	}
}
