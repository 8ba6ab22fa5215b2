// Package compiler renders a compiled Program through text templates,
// so a score can be embedded in a C build or inspected as a plain-text
// listing without running it.
package compiler

import (
	"bytes"
	"embed"
	"fmt"
	"path/filepath"
	"text/template"

	"github.com/Masterminds/sprig"
	"github.com/saugns/saugo"
	"github.com/saugns/saugo/vm"
)

type Compiler struct {
	Template *template.Template
	Format   string
}

//go:embed templates/c/* templates/txt/*
var templateFS embed.FS

var formatTemplates = map[string][]string{
	"c":   {"program.h"},
	"txt": {"program.txt"},
}

// New returns a new compiler using the built-in templates for the
// given format, "c" or "txt".
func New(format string) (*Compiler, error) {
	if _, ok := formatTemplates[format]; !ok {
		return nil, fmt.Errorf("compiler.New failed, because only c and txt formats are supported (requested format was %v)", format)
	}
	tmpl, err := template.New("base").Funcs(templateFuncs()).ParseFS(templateFS, "templates/"+format+"/*.*")
	if err != nil {
		return nil, fmt.Errorf(`could not create templates: %v`, err)
	}
	return &Compiler{Template: tmpl, Format: format}, nil
}

// NewFromTemplates is like New but reads the templates from a
// directory, for overriding the built-in output without rebuilding.
func NewFromTemplates(format string, templateDirectory string) (*Compiler, error) {
	if _, ok := formatTemplates[format]; !ok {
		return nil, fmt.Errorf("compiler.NewFromTemplates failed, because only c and txt formats are supported (requested format was %v)", format)
	}
	globPtrn := filepath.Join(templateDirectory, "*.*")
	tmpl, err := template.New("base").Funcs(templateFuncs()).ParseGlob(globPtrn)
	if err != nil {
		return nil, fmt.Errorf(`could not create template based on directory "%v": %v`, templateDirectory, err)
	}
	return &Compiler{Template: tmpl, Format: format}, nil
}

// Program renders prog through every template of the compiler's
// format, returning the populated templates keyed by file extension.
func (com *Compiler) Program(prog *vm.Program) (map[string]string, error) {
	retmap := map[string]string{}
	for _, templateName := range formatTemplates[com.Format] {
		data := struct {
			Program *vm.Program
		}{prog}
		populatedTemplate, extension, err := com.compile(templateName, &data)
		if err != nil {
			return nil, fmt.Errorf(`could not execute template "%v": %v`, templateName, err)
		}
		retmap[extension] = populatedTemplate
	}
	return retmap, nil
}

func (com *Compiler) compile(templateName string, data interface{}) (string, string, error) {
	result := bytes.NewBufferString("")
	err := com.Template.ExecuteTemplate(result, templateName, data)
	extension := filepath.Ext(templateName)
	return result.String(), extension, err
}

func templateFuncs() template.FuncMap {
	funcs := sprig.TxtFuncMap()
	funcs["ramp"] = formatRamp
	funcs["fields"] = fieldNames
	return funcs
}

func formatRamp(r saugo.Ramp) string {
	s := fmt.Sprintf("%g", r.Value)
	if r.Ratio {
		s += "r"
	}
	if r.HasGoal {
		s += fmt.Sprintf("->%g/%gms %v", r.Goal, r.TimeMS, r.Shape)
	}
	return s
}

func fieldNames(f vm.Fields) []string {
	var names []string
	for i, name := range saugo.OpFields {
		if f&(1<<uint(i)) != 0 {
			names = append(names, name)
		}
	}
	return names
}
