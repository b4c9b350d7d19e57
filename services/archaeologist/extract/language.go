// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package extract

import (
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// Language describes a grammar and the node type that marks a top-level
// function in it.
type Language struct {
	// Name is the canonical lowercase name (e.g., "python").
	Name string

	// DisplayName is used in model prompts (e.g., "Python").
	DisplayName string

	// Extensions lists the lowercase file extensions, dot included.
	Extensions []string

	// FunctionNodeType is the tree-sitter node type of a function definition.
	FunctionNodeType string

	grammar func() *sitter.Language
}

var (
	// Python is the default grammar.
	Python = Language{
		Name:             "python",
		DisplayName:      "Python",
		Extensions:       []string{".py", ".pyi"},
		FunctionNodeType: "function_definition",
		grammar:          python.GetLanguage,
	}

	JavaScript = Language{
		Name:             "javascript",
		DisplayName:      "JavaScript",
		Extensions:       []string{".js", ".mjs", ".cjs", ".jsx"},
		FunctionNodeType: "function_declaration",
		grammar:          javascript.GetLanguage,
	}

	TypeScript = Language{
		Name:             "typescript",
		DisplayName:      "TypeScript",
		Extensions:       []string{".ts", ".mts", ".cts"},
		FunctionNodeType: "function_declaration",
		grammar:          typescript.GetLanguage,
	}

	TSX = Language{
		Name:             "tsx",
		DisplayName:      "TypeScript",
		Extensions:       []string{".tsx"},
		FunctionNodeType: "function_declaration",
		grammar:          tsx.GetLanguage,
	}

	Go = Language{
		Name:             "go",
		DisplayName:      "Go",
		Extensions:       []string{".go"},
		FunctionNodeType: "function_declaration",
		grammar:          golang.GetLanguage,
	}
)

var languages = []Language{Python, JavaScript, TypeScript, TSX, Go}

// LanguageFor picks the grammar for filename by extension. Unknown
// extensions get Python.
func LanguageFor(filename string) Language {
	if lang, ok := lookup(filename); ok {
		return lang
	}
	return Python
}

// Supported reports whether filename has an extension with a dedicated
// grammar.
func Supported(filename string) bool {
	_, ok := lookup(filename)
	return ok
}

func lookup(filename string) (Language, bool) {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		return Language{}, false
	}
	for _, lang := range languages {
		for _, e := range lang.Extensions {
			if e == ext {
				return lang, true
			}
		}
	}
	return Language{}, false
}
