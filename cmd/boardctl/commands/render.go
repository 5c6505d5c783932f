package commands

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"coaching-backend/internal/render"
)

type renderOptions struct {
	output string
	format string
	scale  float64
	grid   bool
}

func newRenderCmd() *cobra.Command {
	opts := &renderOptions{}
	cmd := &cobra.Command{
		Use:   "render FIXTURE",
		Short: "Render a board fixture to SVG or PNG",
		Long: `Render a YAML board fixture with every connector routed.

The format follows the output extension unless --format is given.
Use -o - to write to stdout.

Examples:
  boardctl render vpc.yaml -o vpc.svg
  boardctl render vpc.yaml -o vpc.png --scale 2 --grid`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd, args[0], opts)
		},
	}
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Output file (default: FIXTURE with .svg)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "", "svg or png")
	cmd.Flags().Float64Var(&opts.scale, "scale", 1, "Output scale")
	cmd.Flags().BoolVar(&opts.grid, "grid", false, "Draw the background grid")
	return cmd
}

func runRender(cmd *cobra.Command, path string, opts *renderOptions) error {
	fixture, err := LoadFixture(path)
	if err != nil {
		return err
	}
	scene, err := fixture.Scene()
	if err != nil {
		return err
	}

	output := opts.output
	if output == "" {
		output = strings.TrimSuffix(path, filepath.Ext(path)) + ".svg"
	}
	format := strings.ToLower(opts.format)
	if format == "" {
		format = strings.TrimPrefix(strings.ToLower(filepath.Ext(output)), ".")
		if output == "-" {
			format = "svg"
		}
	}

	ro := render.DefaultOptions()
	ro.Scale = opts.scale
	ro.Grid = opts.grid

	var buf bytes.Buffer
	switch format {
	case "svg":
		err = render.WriteSVG(&buf, scene, ro)
	case "png":
		err = render.WritePNG(&buf, scene, ro)
	default:
		return fmt.Errorf("unsupported format %q", format)
	}
	if err != nil {
		return err
	}

	if output == "-" {
		_, err = io.Copy(cmd.OutOrStdout(), &buf)
		return err
	}
	if err := os.WriteFile(output, buf.Bytes(), 0o644); err != nil {
		return err
	}
	if len(scene.Connections) < len(fixture.ConnectionSpecs) {
		warning(cmd.ErrOrStderr(), "%d connection(s) skipped", len(fixture.ConnectionSpecs)-len(scene.Connections))
	}
	success(cmd.ErrOrStderr(), "%s: %d shapes, %d connections -> %s", path, len(scene.Shapes), len(scene.Connections), output)
	return nil
}
