package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"coaching-backend/internal/geometry"
	"coaching-backend/internal/model"
	"coaching-backend/internal/render"
	"coaching-backend/internal/routing"
)

type routeOptions struct {
	from     string
	to       string
	fromSide string
	toSide   string
	opts     routing.Options
	asJSON   bool
}

func newRouteCmd() *cobra.Command {
	o := &routeOptions{opts: routing.DefaultOptions()}
	cmd := &cobra.Command{
		Use:   "route [FIXTURE CONNECTION_ID]",
		Short: "Print the orthogonal route of a connector",
		Long: `Print the polyline a connector is drawn with.

Either name a connection of a fixture, or describe both shapes directly
with --from/--to rectangles and the sides the connector leaves and enters.

Examples:
  boardctl route vpc.yaml c1
  boardctl route --from 0,0,100,80 --from-side right --to 300,200,100,80 --to-side top`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 && len(args) != 2 {
				return fmt.Errorf("expected FIXTURE CONNECTION_ID or no arguments")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			rc, err := o.resolve(args)
			if err != nil {
				return err
			}
			return printRoute(cmd, rc, o.asJSON)
		},
	}
	cmd.Flags().StringVar(&o.from, "from", "", "Source shape rect x,y,w,h")
	cmd.Flags().StringVar(&o.to, "to", "", "Target shape rect x,y,w,h")
	cmd.Flags().StringVar(&o.fromSide, "from-side", "right", "Side the connector leaves from")
	cmd.Flags().StringVar(&o.toSide, "to-side", "left", "Side the connector enters")
	cmd.Flags().Float64Var(&o.opts.Out, "out", o.opts.Out, "Offset off the shape border")
	cmd.Flags().Float64Var(&o.opts.Stub, "stub", o.opts.Stub, "Straight run before the first bend")
	cmd.Flags().Float64Var(&o.opts.Hook, "hook", o.opts.Hook, "Jog size when the approach doubles back")
	cmd.Flags().BoolVar(&o.asJSON, "json", false, "Print JSON")
	return cmd
}

func (o *routeOptions) resolve(args []string) (render.RoutedConnection, error) {
	if len(args) == 2 {
		fixture, err := LoadFixture(args[0])
		if err != nil {
			return render.RoutedConnection{}, err
		}
		scene, err := fixture.Scene()
		if err != nil {
			return render.RoutedConnection{}, err
		}
		rc, ok := scene.Connection(args[1])
		if !ok {
			return render.RoutedConnection{}, fmt.Errorf("connection %q not drawable in %s", args[1], args[0])
		}
		return rc, nil
	}

	if o.from == "" || o.to == "" {
		return render.RoutedConnection{}, fmt.Errorf("--from and --to are required without a fixture")
	}
	fromRect, err := parseRect(o.from)
	if err != nil {
		return render.RoutedConnection{}, err
	}
	toRect, err := parseRect(o.to)
	if err != nil {
		return render.RoutedConnection{}, err
	}
	fromSide, toSide := geometry.Side(o.fromSide), geometry.Side(o.toSide)
	if !fromSide.Valid() || !toSide.Valid() {
		return render.RoutedConnection{}, fmt.Errorf("sides must be top, right, bottom or left")
	}
	fromAnchor, _ := geometry.SideMidpoint(fromSide)
	toAnchor, _ := geometry.SideMidpoint(toSide)
	c := model.Connection{
		ID:         "route",
		FromAnchor: fromAnchor,
		ToAnchor:   toAnchor,
		FromSide:   fromSide,
		ToSide:     toSide,
	}
	return render.RouteConnection(c, fromRect, toRect, o.opts), nil
}

func printRoute(cmd *cobra.Command, rc render.RoutedConnection, asJSON bool) error {
	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rc.Route)
	}
	cyan.Fprintf(out, "%s: %d points, arrow %.0f°\n", rc.ID, len(rc.Route.Points), rc.Route.Angle)
	for _, p := range rc.Route.Points {
		fmt.Fprintf(out, "  (%g, %g)\n", p.X, p.Y)
	}
	return nil
}
