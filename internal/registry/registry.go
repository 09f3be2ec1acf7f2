// Package registry holds the immutable, name-indexed tool table. It is built
// once at startup — compiling every tool's schemas and templates and binding
// the executor matching its kind — and is read-only afterwards, so concurrent
// dispatchers share it without locking.
package registry

import (
	"fmt"
	"net/http"

	"github.com/bobmcallan/toolbridge/internal/common"
	"github.com/bobmcallan/toolbridge/internal/config"
	"github.com/bobmcallan/toolbridge/internal/executor"
	"github.com/bobmcallan/toolbridge/internal/schema"
	"github.com/bobmcallan/toolbridge/internal/template"
)

// Tool is one registered tool: its declaration, compiled schemas and bound
// executor.
type Tool struct {
	Def    config.ToolDefinition
	Input  *schema.Schema
	Output *schema.Schema
	Exec   executor.Executor
}

// Registry maps tool names to tools, preserving declaration order for
// listing.
type Registry struct {
	order []string
	tools map[string]*Tool
}

// Build constructs the registry from validated configuration. Executor
// selection happens here, by declared kind — never by inspecting call data
// at runtime. Any error is a configuration error and fatal to startup.
func Build(cfg *config.Config, eng *template.Engine, logger *common.Logger) (*Registry, error) {
	// One shared client: executors are stateless and per-invocation
	// deadlines come from the request context.
	client := &http.Client{}

	r := &Registry{
		order: make([]string, 0, len(cfg.Tools)),
		tools: make(map[string]*Tool, len(cfg.Tools)),
	}

	for i := range cfg.Tools {
		def := cfg.Tools[i]

		in, err := schema.Compile(def.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("tool %q: input_schema: %w", def.Name, err)
		}
		out, err := schema.Compile(def.OutputSchema)
		if err != nil {
			return nil, fmt.Errorf("tool %q: output_schema: %w", def.Name, err)
		}

		timeout := def.ExecTimeout(cfg.Execution)

		var exec executor.Executor
		switch def.Kind {
		case config.KindHTTP:
			exec, err = executor.NewHTTP(&def, eng, in, out, timeout, client, logger)
		case config.KindCommand:
			exec, err = executor.NewCommand(&def, eng, in, out, timeout, logger)
		default:
			err = fmt.Errorf("tool %q: unsupported tool_type %q", def.Name, def.Kind)
		}
		if err != nil {
			return nil, err
		}

		if _, dup := r.tools[def.Name]; dup {
			return nil, fmt.Errorf("tool %q: duplicate name", def.Name)
		}
		r.order = append(r.order, def.Name)
		r.tools[def.Name] = &Tool{Def: def, Input: in, Output: out, Exec: exec}
	}

	return r, nil
}

// Lookup returns the tool registered under name.
func (r *Registry) Lookup(name string) (*Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// List returns the tools in declaration order.
func (r *Registry) List() []*Tool {
	out := make([]*Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// Len reports the number of registered tools.
func (r *Registry) Len() int { return len(r.order) }
