// Command roadsidectl calls the roadside API from a terminal. Reads keep
// working during an outage from the last-known-good snapshot in Redis
// (when REDIS_ADDR is set) and are flagged as degraded.
//
//	roadsidectl nearby -lat 48.85 -lon 2.35 [-radius 10]
//	roadsidectl requests
//	roadsidectl get -id <request id>
//	roadsidectl create -provider <id> -lat .. -lon .. -address .. -desc ..
//	roadsidectl transition -id <request id> -status accepted
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/roadside-matching/internal/client"
	"github.com/example/roadside-matching/internal/config"
	"github.com/example/roadside-matching/internal/geo"
	"github.com/example/roadside-matching/internal/lifecycle"
	"github.com/example/roadside-matching/internal/logging"
	"github.com/example/roadside-matching/internal/models"
	"github.com/example/roadside-matching/internal/resilience"
)

func main() {
	cfg, err := config.LoadClientConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}
	logger := logging.New(os.Stderr, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := []resilience.Option{resilience.WithMaxStale(cfg.MaxStale), resilience.WithLogger(logger)}
	if cfg.RedisAddr != "" {
		rc := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer rc.Close()
		opts = append(opts, resilience.WithSnapshots(resilience.NewRedisSnapshots(rc, "", cfg.SnapshotTTL)))
	}
	account := models.Account{ID: cfg.AccountID, Role: models.Role(cfg.Role)}
	c := client.New(cfg.APIURL, cfg.Token, account, resilience.NewCache(opts...))

	if err := run(ctx, c, os.Args[1:], os.Stdout, logger); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// envelope is what every read prints: the data plus where it came from.
type envelope struct {
	Source    resilience.Source `json:"source"`
	Degraded  bool              `json:"degraded"`
	FetchedAt time.Time         `json:"fetched_at"`
	Data      any               `json:"data"`
}

func printResult[T any](w io.Writer, res resilience.Result[T]) error {
	return printJSON(w, envelope{Source: res.Source, Degraded: res.Degraded(), FetchedAt: res.FetchedAt, Data: res.Data})
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func run(ctx context.Context, c *client.Client, args []string, out io.Writer, logger *slog.Logger) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: roadsidectl nearby|requests|get|create|transition [flags]")
	}
	cmd, rest := args[0], args[1:]
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	switch cmd {
	case "nearby":
		lat := fs.Float64("lat", 0, "latitude")
		lon := fs.Float64("lon", 0, "longitude")
		radius := fs.Float64("radius", geo.DefaultRadiusKm, "radius in km")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		res, err := c.NearbyProviders(ctx, models.Position{Lat: *lat, Lon: *lon}, *radius)
		if err != nil {
			return err
		}
		if res.Degraded() {
			logger.Warn("showing degraded provider list", "source", res.Source)
		}
		return printResult(out, res)

	case "requests":
		mine := fs.String("mine", string(c.Account.Role), "client or provider")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		res, err := c.ListRequests(ctx, models.Role(*mine))
		if err != nil {
			return err
		}
		return printResult(out, res)

	case "get":
		id := fs.String("id", "", "request id")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		if *id == "" {
			return fmt.Errorf("get: -id is required")
		}
		res, err := c.GetRequest(ctx, *id)
		if err != nil {
			return err
		}
		return printResult(out, res)

	case "create":
		provider := fs.String("provider", "", "provider id")
		lat := fs.Float64("lat", 0, "latitude")
		lon := fs.Float64("lon", 0, "longitude")
		address := fs.String("address", "", "where the vehicle is")
		desc := fs.String("desc", "", "what happened")
		urgency := fs.String("urgency", "", "low, medium or high")
		plate := fs.String("plate", "", "license plate")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		r, err := c.CreateRequest(ctx, lifecycle.CreateParams{
			ProviderID:  *provider,
			Description: *desc,
			Location:    models.Location{Lat: *lat, Lon: *lon, Address: *address},
			Vehicle:     models.VehicleInfo{LicensePlate: *plate},
			Urgency:     models.Urgency(*urgency),
		})
		if err != nil {
			return err
		}
		return printJSON(out, r)

	case "transition":
		id := fs.String("id", "", "request id")
		status := fs.String("status", "", "accepted, rejected, completed or cancelled")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		r, err := c.Transition(ctx, *id, models.Status(*status))
		if err != nil {
			return err
		}
		return printJSON(out, r)
	}
	return fmt.Errorf("unknown command %q", cmd)
}
