package main

import (
	"flag"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	sim "github.com/kentwait/pandemicsim"
)

func main() {
	configPath := flag.String("i", "", "path to the run's JSON configuration")
	days := flag.Int("d", 365, "simulation horizon in days")
	logLevel := flag.String("l", "info", "log level (debug|info|warn|error)")
	loggerType := flag.String("logger", "csv", "batch output backend, consulted only when running more than one realization (csv|sqlite)")
	numThreads := flag.Int("threads", runtime.NumCPU(), "number of realizations to run concurrently")
	seedFlag := flag.Int64("seed", time.Now().UTC().UnixNano(), "parent RNG seed; derives one child seed per realization")
	flag.Parse()

	log := sim.NewRunLogger(*logLevel)

	if *configPath == "" {
		log.Fatal().Msg("missing required -i <config.json> flag")
	}

	cfg, err := sim.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("loading config")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("validating config")
	}
	sim.LogConfigLoaded(log, *configPath, cfg.NumInstances())

	model, err := sim.AssembleModel(cfg, *days)
	if err != nil {
		log.Fatal().Err(err).Msg("assembling model from config")
	}

	runtime.GOMAXPROCS(*numThreads)
	seeds := sim.NewSeedSequence(*seedFlag, cfg.NumInstances())

	if cfg.NumInstances() == 1 {
		runSingleJSON(log, model, cfg, seeds, *days)
		return
	}
	runBatch(log, model, cfg, seeds, *days, *loggerType, *numThreads)
}

// runSingleJSON runs the run's one realization, streaming per-day JSON
// output.
func runSingleJSON(log zerolog.Logger, model *sim.AssembledModel, cfg *sim.Config, seeds *sim.SeedSequence, days int) {
	index := cfg.RealizationStart()
	seed := seeds.Seed(0)
	sim.LogRealizationStart(log, index, seed)

	out, err := sim.NewJSONOutput(cfg.OutputDirPath, index)
	if err != nil {
		log.Fatal().Err(err).Msg("opening JSON output")
	}

	real, err := model.NewRealization(index, seed)
	if err != nil {
		log.Fatal().Err(err).Msg("building realization")
	}

	lastDay := 0
	real.OnDay = func(day int, net *sim.Network) {
		lastDay = day
		if err := out.WriteDay(day, net); err != nil {
			log.Fatal().Err(err).Int("day", day).Msg("writing JSON output")
		}
	}

	start := time.Now()
	// Stochastic engines draw from the realization's single RNG, so their
	// nodes are stepped sequentially to keep the run reproducible.
	real.Run(days, !strings.HasSuffix(real.Engine.Identity(), "-stochastic"))
	sim.LogRealizationEnd(log, index, lastDay, lastDay < days)
	log.Info().Dur("elapsed", time.Since(start)).Msg("run complete")
}

// runBatch runs every configured realization, writing per-node/per-
// network/realization-time records to the configured batch backend
// (csv|sqlite). Realizations run concurrently across up to numThreads
// workers; the output writer's calls are serialized with a mutex since
// every realization appends to the same batch files.
func runBatch(log zerolog.Logger, model *sim.AssembledModel, cfg *sim.Config, seeds *sim.SeedSequence, days int, loggerType string, numThreads int) {
	var out interface {
		WriteNodeDay(day int, net *sim.Network) error
		WriteNetworkDay(day int, net *sim.Network) error
		WriteRealizationTime(realizationIndex int, seconds float64) error
	}

	switch loggerType {
	case "sqlite":
		o, err := sim.NewSQLiteOutput(cfg.OutputDirPath, cfg.BatchNum)
		if err != nil {
			log.Fatal().Err(err).Msg("opening sqlite output")
		}
		defer o.Close()
		out = o
	case "csv":
		out = sim.NewCSVOutput(cfg.OutputDirPath, cfg.BatchNum)
	default:
		log.Fatal().Str("logger", loggerType).Msg("unrecognized -logger value, want csv or sqlite")
	}
	sim.LogOutputOpened(log, loggerType, cfg.OutputDirPath)

	start := cfg.RealizationStart()
	n := cfg.NumInstances()

	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, numThreads)

	for i := 0; i < n; i++ {
		i := i
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			index := start + i
			seed := seeds.Seed(i)
			sim.LogRealizationStart(log, index, seed)

			real, err := model.NewRealization(index, seed)
			if err != nil {
				log.Fatal().Err(err).Int("realization", index).Msg("building realization")
			}

			realStart := time.Now()
			lastDay := 0
			real.OnDay = func(day int, net *sim.Network) {
				lastDay = day
				mu.Lock()
				defer mu.Unlock()
				if err := out.WriteNodeDay(day, net); err != nil {
					log.Fatal().Err(err).Int("realization", index).Int("day", day).Msg("writing node-day record")
				}
				if err := out.WriteNetworkDay(day, net); err != nil {
					log.Fatal().Err(err).Int("realization", index).Int("day", day).Msg("writing network-day record")
				}
			}

			real.Run(days, false)
			elapsed := time.Since(realStart)

			mu.Lock()
			if err := out.WriteRealizationTime(index, elapsed.Seconds()); err != nil {
				log.Fatal().Err(err).Int("realization", index).Msg("writing realization-time record")
			}
			mu.Unlock()

			sim.LogRealizationEnd(log, index, lastDay, lastDay < days)
		}()
	}
	wg.Wait()
	log.Info().Int("realizations", n).Msg("batch complete")
}
