package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/saugns/saugo"
	"github.com/saugns/saugo/oto"
	"github.com/saugns/saugo/version"
	"github.com/saugns/saugo/vm"
)

func main() {
	stdout := flag.Bool("s", false, "Do not write files; write to standard output instead.")
	help := flag.Bool("h", false, "Show help.")
	directory := flag.String("o", "", "Directory where to output all files. The directory and its parents are created if needed. By default, everything is placed in the same directory where the original script file is.")
	play := flag.Bool("p", false, "Play the input scripts (default behaviour when no other output is defined).")
	rawOut := flag.Bool("r", false, "Output the rendered script as .raw file: interleaved 16-bit signed stereo PCM, little-endian.")
	wavOut := flag.Bool("w", false, "Output the rendered script as .wav file.")
	sampleRate := flag.Int("rate", 44100, "Sample rate to render and play at.")
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
	if !*rawOut && !*wavOut {
		*play = true // if the user gives nothing to output, then the default behaviour is just to play the file
	}
	var audioContext saugo.AudioContext
	if *play {
		var err error
		audioContext, err = oto.NewContext(*sampleRate)
		if err != nil {
			fmt.Fprintf(os.Stderr, "could not acquire oto AudioContext: %v\n", err)
			os.Exit(1)
		}
	}
	process := func(filename string) error {
		output := func(extension string, contents []byte) error {
			if *stdout {
				os.Stdout.Write(contents)
				return nil
			}
			_, name := filepath.Split(filename)
			dir := *directory
			if dir == "" {
				var err error
				dir, err = os.Getwd()
				if err != nil {
					return fmt.Errorf("could not get working directory, specify the output directory explicitly: %v", err)
				}
			}
			name = strings.TrimSuffix(name, filepath.Ext(name)) + extension
			f := filepath.Join(dir, name)
			if err := os.MkdirAll(dir, os.ModePerm); err != nil {
				return fmt.Errorf("could not create output directory %v: %v", dir, err)
			}
			if err := ioutil.WriteFile(f, contents, 0644); err != nil {
				return fmt.Errorf("could not write file %v: %v", f, err)
			}
			return nil
		}
		inputBytes, err := ioutil.ReadFile(filename)
		if err != nil {
			return fmt.Errorf("could not read file %v: %v", filename, err)
		}
		var script saugo.Script
		if errJSON := json.Unmarshal(inputBytes, &script); errJSON != nil {
			if errYaml := yaml.Unmarshal(inputBytes, &script); errYaml != nil {
				return fmt.Errorf("the script could not be parsed as .json (%v) or .yml (%v)", errJSON, errYaml)
			}
		}
		prog, err := vm.Compile(script)
		if err != nil {
			return fmt.Errorf("vm.Compile failed: %v", err)
		}
		for _, w := range prog.Warnings {
			fmt.Fprintf(os.Stderr, "warning: %v\n", w)
		}
		if *rawOut || *wavOut {
			synth, err := vm.NewGenerator(prog, *sampleRate)
			if err != nil {
				return fmt.Errorf("vm.NewGenerator failed: %v", err)
			}
			buffer := saugo.RenderAll(synth)
			for _, w := range synth.Warnings {
				fmt.Fprintf(os.Stderr, "warning: %v\n", w)
			}
			if *rawOut {
				raw, err := saugo.Raw(buffer)
				if err != nil {
					return fmt.Errorf("could not generate .raw file: %v", err)
				}
				if err := output(".raw", raw); err != nil {
					return fmt.Errorf("error outputting .raw file: %v", err)
				}
			}
			if *wavOut {
				wav, err := saugo.Wav(buffer, *sampleRate)
				if err != nil {
					return fmt.Errorf("could not generate .wav file: %v", err)
				}
				if err := output(".wav", wav); err != nil {
					return fmt.Errorf("error outputting .wav file: %v", err)
				}
			}
		}
		if *play {
			synth, err := vm.NewGenerator(prog, *sampleRate)
			if err != nil {
				return fmt.Errorf("vm.NewGenerator failed: %v", err)
			}
			synth.OnWarning = func(w string) {
				fmt.Fprintf(os.Stderr, "warning: %v\n", w)
			}
			if err := audioContext.Play(synth); err != nil {
				return fmt.Errorf("playback failed: %v", err)
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
	fmt.Fprintf(os.Stderr, "Saugo command line utility for playing .yml/.json script files.\nUsage: %s [flags] [path ...]\n", os.Args[0])
	flag.PrintDefaults()
}
