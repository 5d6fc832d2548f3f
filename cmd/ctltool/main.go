// Package main is a command-line tool for control files (YAML or
// JSON).
package main

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"os"

	"github.com/Comcast/surface/control"
	"github.com/Comcast/surface/sio"

	"github.com/jsccast/yaml"
)

func main() {

	if len(os.Args) < 2 {
		Usage()
		os.Exit(1)
	}

	if err := run(os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd string, args []string) error {
	bs, err := ioutil.ReadAll(os.Stdin)
	if err != nil {
		return err
	}

	switch cmd {
	case "expand":
		if len(args) != 1 {
			return fmt.Errorf("usage: expand FILENAME.js")
		}
		src, err := ioutil.ReadFile(args[0])
		if err != nil {
			return err
		}
		ds, err := sio.ParseControls(bs)
		if err != nil {
			return err
		}
		if ds, err = MacroExpand(ds, args[0], string(src)); err != nil {
			return err
		}
		return WriteYAML(ds)

	case "yamltojson":
		pretty := len(args) == 1 && args[0] == "-p"
		if 0 < len(args) && !pretty {
			return fmt.Errorf("unsupported args: %v", args)
		}
		ds, err := sio.ParseControls(bs)
		if err != nil {
			return err
		}
		if pretty {
			bs, err = json.MarshalIndent(&ds, "", "  ")
		} else {
			bs, err = json.Marshal(&ds)
		}
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(bs)
		return err

	case "jsontoyaml":
		ds, err := sio.ParseControls(bs)
		if err != nil {
			return err
		}
		return WriteYAML(ds)

	default:

		mod, have := Mods[cmd]
		if !have {
			Usage()
			return fmt.Errorf("unknown subcommand \"%s\"", cmd)
		}

		if err := mod.Flags().Parse(args); err != nil {
			return err
		}

		ds, err := sio.ParseControls(bs)
		if err != nil {
			return err
		}

		return mod.F(ds, os.Stdout)
	}
}

// AsYAML renders the controls as YAML by way of JSON so that the
// options' custom JSON forms are used.
func AsYAML(ds []*control.Data) ([]byte, error) {
	js, err := json.Marshal(&ds)
	if err != nil {
		return nil, err
	}
	var x interface{}
	if err = json.Unmarshal(js, &x); err != nil {
		return nil, err
	}
	return yaml.Marshal(&x)
}

func WriteYAML(ds []*control.Data) error {
	bs, err := AsYAML(ds)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(bs)
	return err
}

func Usage() {
	fmt.Printf("Subcommands (controls are read from stdin):\n\n")
	for _, name := range ModNames() {
		mod := Mods[name]
		mod.Flags().Usage()
		fmt.Println("  " + mod.Doc())
		fmt.Println()
	}
	fmt.Printf("Usage of expand: FILENAME.js\n")
	fmt.Printf("  The file defines expand(controls), which returns controls.\n\n")
	fmt.Println("Usage of yamltojson:")
	fmt.Printf("  -p    pretty-print\n\n")
	fmt.Printf("Usage of jsontoyaml: (no arguments)\n\n")
}
