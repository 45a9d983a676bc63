// Command simbatch runs one simulation headlessly and prints/writes a
// completion report, grounded on jwmdev-brt08/backend/main.go's CLI shape
// and backend/driver/batch.go's Summary reporting, fanned through
// internal/driver's errgroup-coordinated Run.
package main

import (
	"context"
	"flag"
	"log"
	"os"

	simconfig "netrailsim/internal/config"
	"netrailsim/internal/driver"
	"netrailsim/internal/policy"
	"netrailsim/internal/scenario"

	"github.com/spf13/viper"
)

func main() {
	networkFile := flag.String("network", "", "path to network JSON (required)")
	trainsFile := flag.String("trains", "", "path to trains JSON (required)")
	configFile := flag.String("config", "", "path to simulation config YAML")
	reportPath := flag.String("report", "", "if set, write a CSV report to this file or directory")
	concurrency := flag.Int("concurrency", 1, "max simulations to run concurrently")
	flag.Parse()

	vp := viper.New()
	vp.SetEnvPrefix("NETRAILSIM")
	vp.AutomaticEnv()
	vp.SetDefault("network_file", "network.json")
	vp.SetDefault("trains_file", "trains.json")

	if *networkFile != "" {
		vp.Set("network_file", *networkFile)
	}
	if *trainsFile != "" {
		vp.Set("trains_file", *trainsFile)
	}

	nf, err := os.Open(vp.GetString("network_file"))
	if err != nil {
		log.Fatalf("simbatch: open network file: %v", err)
	}
	defer nf.Close()
	net, err := scenario.LoadNetwork(nf)
	if err != nil {
		log.Fatalf("simbatch: load network: %v", err)
	}

	tf, err := os.Open(vp.GetString("trains_file"))
	if err != nil {
		log.Fatalf("simbatch: open trains file: %v", err)
	}
	defer tf.Close()
	trains, err := scenario.LoadTrains(tf, net)
	if err != nil {
		log.Fatalf("simbatch: load trains: %v", err)
	}

	cfg := simconfig.Default()
	if *configFile != "" {
		loaded, err := simconfig.Load(*configFile)
		if err != nil {
			log.Fatalf("simbatch: load sim config: %v", err)
		}
		cfg = *loaded
	}
	dynamics := cfg.ToDynamicsParams()
	for _, tr := range trains {
		tr.Dynamics = dynamics
	}

	job := driver.Job{Name: "run", Net: net, Trains: trains, Throttle: policy.Constant{}, Dt: cfg.TimestepS}

	if _, err := driver.Run(context.Background(), []driver.Job{job}, driver.Options{
		Concurrency: *concurrency,
		ReportPath:  *reportPath,
	}); err != nil {
		log.Fatalf("simbatch: run: %v", err)
	}
}
