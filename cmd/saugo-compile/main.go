package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/saugns/saugo"
	"github.com/saugns/saugo/version"
	"github.com/saugns/saugo/vm"
	"github.com/saugns/saugo/vm/compiler"
)

func filterExtensions(input map[string]string, extensions []string) map[string]string {
	ret := map[string]string{}
	for _, ext := range extensions {
		extWithDot := "." + ext
		if inputVal, ok := input[extWithDot]; ok {
			ret[extWithDot] = inputVal
		}
	}
	return ret
}

func main() {
	safe := flag.Bool("n", false, "Never overwrite files; if file already exists and would be overwritten, give an error.")
	list := flag.Bool("l", false, "Do not write files; just list files that would change instead.")
	stdout := flag.Bool("s", false, "Do not write files; write to standard output instead.")
	help := flag.Bool("h", false, "Show help.")
	jsonOut := flag.Bool("j", false, "Output the compiled program as .json file instead of compiling.")
	yamlOut := flag.Bool("y", false, "Output the compiled program as .yml file instead of compiling.")
	tmplDir := flag.String("t", "", "When compiling, use the templates in this directory instead of the standard templates.")
	outPath := flag.String("o", "", "Directory or filename where to write compiled code. Extension is ignored. Directory and its parents are created if needed. By default, everything is placed in the same directory where the original script file is.")
	extensionsOut := flag.String("e", "", "Output only the compiled files with these comma separated extensions. For example: h,txt")
	format := flag.String("f", "c", "Target format. Possible values: c, txt")
	versionFlag := flag.Bool("v", false, "Print version.")
	flag.Usage = printUsage
	flag.Parse()
	if *versionFlag {
		fmt.Println(version.VersionOrHash)
		os.Exit(0)
	}
	if flag.NArg() == 0 || *help {
		flag.Usage()
		os.Exit(0)
	}
	compile := !*jsonOut && !*yamlOut // if the user gives nothing to output, then the default behaviour is to compile the file
	var comp *compiler.Compiler
	if compile {
		var err error
		if *tmplDir != "" {
			comp, err = compiler.NewFromTemplates(*format, *tmplDir)
		} else {
			comp, err = compiler.New(*format)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "error creating compiler: %v\n", err)
			os.Exit(1)
		}
	}
	output := func(filename string, extension string, contents []byte) error {
		if *stdout {
			fmt.Print(string(contents))
			return nil
		}
		_, name := filepath.Split(filename)
		var dir string
		if *outPath != "" {
			// check if it's an already existing directory and the user just forgot trailing slash
			if info, err := os.Stat(*outPath); err == nil && info.IsDir() {
				dir = *outPath
			} else {
				outdir, outname := filepath.Split(*outPath)
				if outdir != "" {
					dir = outdir
				}
				if outname != "" {
					name = outname
				}
			}
		}
		if dir == "" {
			var err error
			dir, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("could not get working directory, specify the output directory explicitly: %v", err)
			}
		}
		name = strings.TrimSuffix(name, filepath.Ext(name)) + extension
		f := filepath.Join(dir, name)
		original, err := ioutil.ReadFile(f)
		if err == nil {
			if bytes.Equal(original, contents) {
				return nil // no need to update
			}
			if !*list && *safe {
				return fmt.Errorf("file %v would be overwritten by compiler", f)
			}
		}
		if *list {
			fmt.Println(f)
		} else {
			if err := os.MkdirAll(dir, os.ModePerm); err != nil {
				return fmt.Errorf("could not create output directory %v: %v", dir, err)
			}
			err := ioutil.WriteFile(f, contents, 0644)
			if err != nil {
				return fmt.Errorf("could not write file %v: %v", f, err)
			}
		}
		return nil
	}
	process := func(filename string) error {
		inputBytes, err := ioutil.ReadFile(filename)
		if err != nil {
			return fmt.Errorf("could not read file %v: %v", filename, err)
		}
		var script saugo.Script
		if errJSON := json.Unmarshal(inputBytes, &script); errJSON != nil {
			if errYaml := yaml.Unmarshal(inputBytes, &script); errYaml != nil {
				return fmt.Errorf("script could not be unmarshaled as a .json (%v) or .yml (%v)", errJSON, errYaml)
			}
		}
		prog, err := vm.Compile(script)
		if err != nil {
			return fmt.Errorf("vm.Compile failed: %v", err)
		}
		for _, w := range prog.Warnings {
			fmt.Fprintf(os.Stderr, "warning: %v\n", w)
		}
		if compile {
			compiledProgram, err := comp.Program(prog)
			if err != nil {
				return fmt.Errorf("compiling program failed: %v", err)
			}
			if len(*extensionsOut) > 0 {
				compiledProgram = filterExtensions(compiledProgram, strings.Split(*extensionsOut, ","))
			}
			for extension, code := range compiledProgram {
				if err := output(filename, extension, []byte(code)); err != nil {
					return fmt.Errorf("error outputting %v file: %v", extension, err)
				}
			}
		}
		if *jsonOut {
			jsonProgram, err := json.Marshal(prog)
			if err != nil {
				return fmt.Errorf("could not marshal the program as json file: %v", err)
			}
			if err := output(filename, ".json", jsonProgram); err != nil {
				return fmt.Errorf("error outputting json file: %v", err)
			}
		}
		if *yamlOut {
			yamlProgram, err := yaml.Marshal(prog)
			if err != nil {
				return fmt.Errorf("could not marshal the program as yaml file: %v", err)
			}
			if err := output(filename, ".yml", yamlProgram); err != nil {
				return fmt.Errorf("error outputting yaml file: %v", err)
			}
		}
		return nil
	}
	retval := 0
	for _, param := range flag.Args() {
		if info, err := os.Stat(param); err == nil && info.IsDir() {
			jsonfiles, err := filepath.Glob(filepath.Join(param, "*.json"))
			if err != nil {
				fmt.Fprintf(os.Stderr, "could not glob the path %v for json files: %v\n", param, err)
				retval = 1
				continue
			}
			ymlfiles, err := filepath.Glob(filepath.Join(param, "*.yml"))
			if err != nil {
				fmt.Fprintf(os.Stderr, "could not glob the path %v for yml files: %v\n", param, err)
				retval = 1
				continue
			}
			files := append(ymlfiles, jsonfiles...)
			for _, file := range files {
				err := process(file)
				if err != nil {
					fmt.Fprintf(os.Stderr, "could not process file %v: %v\n", file, err)
					retval = 1
				}
			}
		} else {
			err := process(param)
			if err != nil {
				fmt.Fprintf(os.Stderr, "could not process file %v: %v\n", param, err)
				retval = 1
			}
		}
	}
	os.Exit(retval)
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Saugo compiler. Input .yml or .json scripts, outputs compiled programs (e.g. .h and .txt files).\nUsage: %s [flags] [path ...]\n", os.Args[0])
	flag.PrintDefaults()
}
