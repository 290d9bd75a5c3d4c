package architecture_test

import (
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestHexagonalLayerImports(t *testing.T) {
	t.Parallel()
	fset := token.NewFileSet()
	root := filepath.Join("..", "modules")
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return nil
		}
		slash := filepath.ToSlash(path)
		module := moduleName(slash)
		layer := detectLayer(slash)
		if module == "" || layer == "" {
			return nil
		}
		node, parseErr := parser.ParseFile(fset, path, nil, parser.ImportsOnly)
		if parseErr != nil {
			return parseErr
		}
		for _, imp := range node.Imports {
			importPath := strings.Trim(imp.Path.Value, `"`)
			if !strings.Contains(importPath, "arrivalwatch/internal/modules/") {
				continue
			}
			if violatesLayerRule(module, layer, importPath) {
				t.Fatalf("forbidden import in %s (%s): %s", slash, layer, importPath)
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walk modules: %v", err)
	}
}

func moduleName(path string) string {
	parts := strings.Split(path, "/")
	for i := 0; i < len(parts)-1; i++ {
		if parts[i] == "modules" && i+1 < len(parts) {
			return parts[i+1]
		}
	}
	return ""
}

func detectLayer(path string) string {
	for _, layer := range []string{"adapter/in", "adapter/out", "usecase", "service", "domain", "port/in", "port/out", "dto"} {
		if strings.Contains(path, "/"+layer+"/") {
			return layer
		}
	}
	return ""
}

func isPortIn(path string) bool {
	return strings.Contains(path, "/port/in/") || strings.HasSuffix(path, "/port/in")
}

func isDTO(path string) bool {
	return strings.Contains(path, "/dto/") || strings.HasSuffix(path, "/dto")
}

// Other modules are reachable only through their port/in and dto packages.
func violatesLayerRule(module, layer, importPath string) bool {
	sameModule := strings.Contains(importPath, "/internal/modules/"+module+"/")
	if !sameModule {
		return !isPortIn(importPath) && !isDTO(importPath)
	}

	switch layer {
	case "adapter/in":
		return !isPortIn(importPath) && !isDTO(importPath)
	case "usecase":
		return strings.Contains(importPath, "/adapter/")
	case "port/in", "port/out", "dto":
		return strings.Contains(importPath, "/adapter/") || strings.Contains(importPath, "/usecase/") || strings.HasSuffix(importPath, "/service")
	case "service":
		return strings.Contains(importPath, "/adapter/") || strings.HasSuffix(importPath, "/usecase")
	case "domain":
		return strings.Contains(importPath, "/adapter/") || strings.HasSuffix(importPath, "/usecase") || strings.HasSuffix(importPath, "/service")
	default:
		return false
	}
}

func TestViolatesLayerRule(t *testing.T) {
	t.Parallel()
	const prefix = "arrivalwatch/internal/modules/"
	cases := []struct {
		module, layer, importPath string
		want                      bool
	}{
		{"routine", "service", prefix + "tracking/port/in", false},
		{"routine", "service", prefix + "tracking/dto", false},
		{"routine", "service", prefix + "tracking/service", true},
		{"routine", "service", prefix + "tracking/domain", true},
		{"tracking", "adapter/in", prefix + "tracking/port/in", false},
		{"tracking", "adapter/in", prefix + "tracking/service", true},
		{"tracking", "usecase", prefix + "tracking/service", false},
		{"tracking", "usecase", prefix + "tracking/adapter/out", true},
		{"tracking", "service", prefix + "tracking/usecase", true},
		{"tracking", "domain", prefix + "tracking/service", true},
		{"tracking", "port/out", prefix + "tracking/domain", false},
	}
	for _, tc := range cases {
		if got := violatesLayerRule(tc.module, tc.layer, tc.importPath); got != tc.want {
			t.Errorf("violatesLayerRule(%s, %s, %s) = %t, want %t", tc.module, tc.layer, tc.importPath, got, tc.want)
		}
	}
}
