package graphspec

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/runtrace/internal/ir"
)

// Error codes for graph loading.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeNoGraph     = "E007" // No graph field

	ErrCodeInvalidNode = "E101" // Node missing type or malformed
	ErrCodeInvalidEdge = "E102" // Edge references unknown node
	ErrCodeInvalidType = "E104" // Invalid value type (e.g., float)
)

// LoadError represents an error that occurred while loading a graph file.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadGraph loads the "graph" struct from a CUE file, or from the CUE
// package in a directory.
func LoadGraph(path string) (*ir.GraphDescriptor, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("graph not found: %s", path)}
	}

	ctx := cuecontext.New()
	var value cue.Value
	if info.IsDir() {
		instances := load.Instances([]string{"."}, &load.Config{Dir: path})
		if len(instances) == 0 {
			return nil, &LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}
		}
		inst := instances[0]
		if inst.Err != nil {
			return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}
		}
		value = ctx.BuildInstance(inst)
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("reading %s: %v", path, err)}
		}
		value = ctx.CompileBytes(data, cue.Filename(path))
	}
	if err := value.Err(); err != nil {
		return nil, &LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}
	}

	graphVal := value.LookupPath(cue.ParsePath("graph"))
	if !graphVal.Exists() {
		return nil, &LoadError{Code: ErrCodeNoGraph, Message: fmt.Sprintf("no graph defined in %s", path)}
	}

	g, err := CompileGraph(graphVal)
	if err != nil {
		return nil, convertCompileError(err)
	}
	return g, nil
}

// convertCompileError converts a compile error to a LoadError with position info.
func convertCompileError(err error) *LoadError {
	var compileErr *CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    mapFieldToErrorCode(compileErr.Field),
			Message: compileErr.Message,
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{Code: ErrCodeGeneric, Message: err.Error()}
}

func mapFieldToErrorCode(field string) string {
	switch {
	case field == "type":
		return ErrCodeInvalidType
	case field == "nodes" || strings.HasPrefix(field, "nodes."):
		return ErrCodeInvalidNode
	case strings.HasPrefix(field, "edges["):
		return ErrCodeInvalidEdge
	default:
		return ErrCodeGeneric
	}
}
