// Package toolbox is a client SDK for the Toolbox tool server: it loads tool
// definitions over HTTP and turns them into directly callable,
// schema-validated functions.
//
// # Overview
//
// A Toolbox server publishes tools as manifests. This package fetches a
// manifest, derives the caller-facing parameter schema, and returns a
// ToolboxTool whose Invoke validates arguments, resolves dynamic values, and
// POSTs to the tool's invoke endpoint.
//
// Pipeline: NewClient → LoadTool / LoadToolset → ToolboxTool → Invoke
// (validate → resolve bound parameters → strip nils → resolve headers and
// tokens → POST → result).
//
// # Key concepts
//
//   - Bound parameters: values fixed at load time (or via BindParams) that
//     disappear from the caller-facing schema and are resolved fresh on every
//     invocation; a function value is called each time, never memoized.
//   - Auth token getters: per-service credential sources. Authenticated
//     parameters are populated server-side from a verified token and are
//     never caller-supplied; the tool refuses to invoke while requirements
//     are outstanding.
//   - Immutability: a ToolboxTool is never mutated. BindParams and
//     AddAuthTokenGetters return new instances, so one loaded tool can be
//     specialized per user or per request.
//
// See ToolboxClient for loading, ToolboxTool for invocation, and the auth
// subpackage for Google ID token helpers.
//
// # Example
//
//	client, err := toolbox.NewClient("https://toolbox.example.com")
//	if err != nil { ... }
//	tool, err := client.LoadTool(ctx, "get-weather")
//	if err != nil { ... }
//	result, err := tool.Invoke(ctx, map[string]any{"city": "Moscow"})
package toolbox
