package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"trip-route-service/internal/adapters/google"
	"trip-route-service/internal/api/dto"
	"trip-route-service/internal/config"
	"trip-route-service/internal/domain"
	"trip-route-service/internal/ports"
	"trip-route-service/internal/services"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type options struct {
	file          string
	start         string
	metric        string
	travelMode    string
	returnToStart bool
	tryAllStarts  bool
	pretty        bool
}

var opts options

var rootCmd = &cobra.Command{
	Use:   "routeopt",
	Short: "Plan a visiting order for a list of stops",
	Long: `routeopt reads stops as JSON, either a bare array of {id, name, location{lat, lng}} or an
object with an "itinerary" array, and prints the optimized order.

The haversine metric works offline. The external and hybrid metrics call the Google Distance
Matrix API and need GOOGLE_MAPS_API_KEY.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		in := cmd.InOrStdin()
		if opts.file != "" && opts.file != "-" {
			f, err := os.Open(opts.file)
			if err != nil {
				return fmt.Errorf("open stops: %w", err)
			}
			defer f.Close()
			in = f
		}

		var provider ports.CostMatrixProvider
		if domain.Metric(opts.metric) != domain.MetricHaversine {
			config.LoadDotEnv()
			client, err := google.New(config.GoogleMapsAPIKey())
			if err != nil {
				return fmt.Errorf("metric %s: %w", opts.metric, err)
			}
			provider = client
		}

		return run(cmd.Context(), in, cmd.OutOrStdout(), opts, provider)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	zap.ReplaceGlobals(zap.NewNop())
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "routeopt:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().StringVarP(&opts.file, "file", "f", "-", "stops JSON file (- for stdin)")
	rootCmd.Flags().StringVarP(&opts.start, "start", "s", "", "pin the tour start at \"lat,lng\"")
	rootCmd.Flags().StringVarP(&opts.metric, "metric", "m", string(domain.MetricHaversine), "cost metric: haversine, external or hybrid")
	rootCmd.Flags().StringVar(&opts.travelMode, "mode", string(domain.TravelModeDriving), "travel mode for external metrics")
	rootCmd.Flags().BoolVarP(&opts.returnToStart, "return", "r", false, "close the tour back at the first stop")
	rootCmd.Flags().BoolVar(&opts.tryAllStarts, "try-all-starts", true, "try every stop as the starting point")
	rootCmd.Flags().BoolVarP(&opts.pretty, "pretty", "p", false, "indent the JSON output")
}

func run(ctx context.Context, in io.Reader, out io.Writer, o options, provider ports.CostMatrixProvider) error {
	stops, err := readStops(in)
	if err != nil {
		return err
	}

	req := domain.OptimizationRequest{
		Stops:         stops,
		ReturnToStart: o.returnToStart,
		TryAllStarts:  o.tryAllStarts,
		Metric:        domain.Metric(o.metric),
		TravelMode:    domain.TravelMode(strings.ToUpper(o.travelMode)),
	}
	if o.start != "" {
		start, err := parseLatLng(o.start)
		if err != nil {
			return err
		}
		req.Start = &start
	}

	res, err := services.Optimize(ctx, req, provider)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	if o.pretty {
		enc.SetIndent("", "  ")
	}
	wire := dto.OptimizeRequest{Itinerary: dto.DestinationsFromStops(stops)}
	if req.Start != nil {
		wire.Start = &dto.LatLng{Lat: req.Start.Lat, Lng: req.Start.Lng}
	}
	return enc.Encode(wire.Response(res))
}

func readStops(in io.Reader) ([]domain.Stop, error) {
	raw, err := io.ReadAll(in)
	if err != nil {
		return nil, fmt.Errorf("read stops: %w", err)
	}

	var list []dto.Destination
	if err := json.Unmarshal(raw, &list); err == nil {
		return dto.StopsFromDestinations(list), nil
	}
	var req dto.OptimizeRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, fmt.Errorf("read stops: %w", err)
	}
	if req.Itinerary == nil {
		return nil, errors.New("read stops: no itinerary array found")
	}
	return dto.StopsFromDestinations(req.Itinerary), nil
}

func parseLatLng(s string) (domain.LatLng, error) {
	lat, lng, ok := strings.Cut(s, ",")
	if !ok {
		return domain.LatLng{}, fmt.Errorf("start %q: want \"lat,lng\"", s)
	}
	la, err := strconv.ParseFloat(strings.TrimSpace(lat), 64)
	if err != nil {
		return domain.LatLng{}, fmt.Errorf("start latitude: %w", err)
	}
	ln, err := strconv.ParseFloat(strings.TrimSpace(lng), 64)
	if err != nil {
		return domain.LatLng{}, fmt.Errorf("start longitude: %w", err)
	}
	p := domain.LatLng{Lat: la, Lng: ln}
	return p, p.Validate()
}
