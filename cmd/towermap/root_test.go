package main

import (
	"go/ast"
	"go/parser"
	"go/token"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"towermap/internal/config"
)

const maxCmdConstructorLines = 80

func TestCommandTree(t *testing.T) {
	cfg := config.Default()
	root := newRootCmd(&cfg)

	for _, path := range []string{
		"srv", "migrate", "info",
		"markers list", "markers rm", "markers export", "markers import",
		"config get", "config set", "config keys",
		"token generate", "token hash",
	} {
		cmd, _, err := root.Find(strings.Fields(path))
		if err != nil || cmd == root {
			t.Fatalf("command %q not registered", path)
		}
	}

	var walk func(cmd *cobra.Command)
	walk = func(cmd *cobra.Command) {
		if strings.TrimSpace(cmd.Short) == "" {
			t.Fatalf("command %q has no short description", cmd.CommandPath())
		}
		for _, child := range cmd.Commands() {
			walk(child)
		}
	}
	walk(root)
}

func TestCommandConstructorsStaySmall(t *testing.T) {
	files, err := filepath.Glob("*.go")
	if err != nil {
		t.Fatalf("glob: %v", err)
	}

	fset := token.NewFileSet()
	for _, path := range files {
		if strings.HasSuffix(path, "_test.go") {
			continue
		}
		file, err := parser.ParseFile(fset, path, nil, 0)
		if err != nil {
			t.Fatalf("parse %s: %v", path, err)
		}
		for _, decl := range file.Decls {
			fn, ok := decl.(*ast.FuncDecl)
			if !ok || fn.Body == nil || !strings.HasPrefix(fn.Name.Name, "new") || !strings.HasSuffix(fn.Name.Name, "Cmd") {
				continue
			}
			lines := fset.Position(fn.Body.Rbrace).Line - fset.Position(fn.Body.Lbrace).Line + 1
			if lines > maxCmdConstructorLines {
				t.Fatalf("constructor %s in %s is too large: %d lines (max %d)", fn.Name.Name, path, lines, maxCmdConstructorLines)
			}
		}
	}
}
