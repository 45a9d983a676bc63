// Command simserver loads a network and train set, runs the simulation, and
// exposes it over HTTP/websocket, grounded on jwmdev-brt08/backend/main.go's
// flag-parse + file-load + serve shape. Flag/env/file merging is done with
// viper, following niceyeti-tabular/tabular/reinforcement/learning.go's
// FromYaml use of viper.New/SetConfigFile/ReadInConfig.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	simconfig "netrailsim/internal/config"
	"netrailsim/internal/policy"
	"netrailsim/internal/scenario"
	"netrailsim/internal/server"
	"netrailsim/internal/sim"

	"github.com/spf13/viper"
)

func main() {
	networkFile := flag.String("network", "", "path to network JSON (required)")
	trainsFile := flag.String("trains", "", "path to trains JSON (required)")
	configFile := flag.String("config", "", "path to simulation config YAML")
	addr := flag.String("addr", "", "HTTP listen address")
	origins := flag.String("allowed_origins", "", "comma-separated CORS allowed origins")
	flag.Parse()

	vp := viper.New()
	vp.SetEnvPrefix("NETRAILSIM")
	vp.AutomaticEnv()
	vp.SetDefault("network_file", "network.json")
	vp.SetDefault("trains_file", "trains.json")
	vp.SetDefault("addr", ":8080")
	vp.SetDefault("allowed_origins", "*")

	if *networkFile != "" {
		vp.Set("network_file", *networkFile)
	}
	if *trainsFile != "" {
		vp.Set("trains_file", *trainsFile)
	}
	if *addr != "" {
		vp.Set("addr", *addr)
	}
	if *origins != "" {
		vp.Set("allowed_origins", *origins)
	}
	if *configFile != "" {
		vp.SetConfigFile(*configFile)
		vp.SetConfigType("yaml")
		if err := vp.MergeInConfig(); err != nil {
			log.Fatalf("simserver: reading config %s: %v", *configFile, err)
		}
	}

	nf, err := os.Open(vp.GetString("network_file"))
	if err != nil {
		log.Fatalf("simserver: open network file: %v", err)
	}
	defer nf.Close()
	net, err := scenario.LoadNetwork(nf)
	if err != nil {
		log.Fatalf("simserver: load network: %v", err)
	}

	tf, err := os.Open(vp.GetString("trains_file"))
	if err != nil {
		log.Fatalf("simserver: open trains file: %v", err)
	}
	defer tf.Close()
	trains, err := scenario.LoadTrains(tf, net)
	if err != nil {
		log.Fatalf("simserver: load trains: %v", err)
	}

	cfg := simconfig.Default()
	if cf := vp.GetString("config_file"); cf != "" || *configFile != "" {
		path := *configFile
		if path == "" {
			path = cf
		}
		loaded, err := simconfig.Load(path)
		if err != nil {
			log.Fatalf("simserver: load sim config: %v", err)
		}
		cfg = *loaded
	}
	dynamics := cfg.ToDynamicsParams()
	for _, tr := range trains {
		tr.Dynamics = dynamics
	}

	log.Printf("simserver: loaded %d nodes, %d links, %d trains", len(net.Nodes), len(net.Links), len(trains))

	s := sim.NewSimulator(net, trains, policy.Constant{}, cfg.TimestepS)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("simserver: shutdown signal received")
		cancel()
	}()

	go func() {
		if err := s.Run(ctx); err != nil {
			log.Printf("simserver: simulation ended: %v", err)
		}
	}()

	srv := server.New(net, s, cancel, server.Options{
		Addr:           vp.GetString("addr"),
		AllowedOrigins: strings.Split(vp.GetString("allowed_origins"), ","),
	})
	log.Printf("simserver: listening on %s", vp.GetString("addr"))
	if err := srv.Serve(); err != nil {
		log.Fatalf("simserver: serve: %v", err)
	}
}
