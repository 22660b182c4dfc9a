package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/storage"
	"github.com/carbocation/sigvival"
	_ "github.com/carbocation/sigvival/compileinfoprint"
	"github.com/carbocation/sigvival/dataset"
	"github.com/carbocation/sigvival/pipeline"
	"github.com/carbocation/sigvival/signature"
	"github.com/carbocation/sigvival/ssgsea"
	"github.com/kardianos/osext"
)

var global *Global

func init() {
	// Prevent seed re-use
	rand.Seed(int64(time.Now().Nanosecond()))
}

func main() {
	errors := make(chan error, 1)
	sig := make(chan os.Signal, 1)
	signal.Notify(sig,
		os.Interrupt,
		os.Kill,
		syscall.SIGTERM,
		syscall.SIGUSR1,
		syscall.SIGHUP,
	)

	defaultData := "data"
	if folder, err := osext.ExecutableFolder(); err == nil {
		defaultData = filepath.Join(folder, "data")
	}

	var dataRoot, normalization, survivalBQ, bqProject, preload string
	var port, minGroupSize, threads int
	var weight float64
	flag.StringVar(&dataRoot, "data", defaultData, "Folder holding the expression, phenotype, and survival tables. May be a gs:// URL.")
	flag.IntVar(&port, "port", 9019, "Port for HTTP server")
	flag.Float64Var(&weight, "weight", 0.25, "ssGSEA weighting exponent applied to the rank of each signature gene")
	flag.IntVar(&minGroupSize, "min-group-size", 2, "Smallest number of samples with survival data a group may hold")
	flag.IntVar(&threads, "threads", runtime.NumCPU(), "Number of samples to score concurrently")
	flag.StringVar(&normalization, "normalization", "area", "ssGSEA score: 'area' (sum of the running sum) or 'maxdev' (maximum deviation)")
	flag.StringVar(&survivalBQ, "survival-bq", "", "(Optional) BigQuery table, as project.dataset.table, to read survival data from instead of the data folder")
	flag.StringVar(&bqProject, "bq-project", "", "(Optional) BigQuery billing project. Required with --survival-bq.")
	flag.StringVar(&preload, "preload", "", "(Optional) Comma-separated cancer types to load into memory at startup")
	flag.Parse()

	dataRoot, err := sigvival.ExpandHome(strings.TrimSuffix(dataRoot, "/"))
	if err != nil {
		log.Fatalln(err)
	}

	norm, err := ssgsea.ParseNormalization(normalization)
	if err != nil {
		log.Fatalln(err)
	}

	var sclient *storage.Client
	if sigvival.IsGoogleStoragePath(dataRoot) {
		sclient, err = storage.NewClient(context.Background())
		if err != nil {
			log.Fatalln(err)
		}
	}

	store := dataset.NewStore(dataRoot, dataset.DefaultLayout(), sclient)
	if survivalBQ != "" {
		if bqProject == "" {
			log.Fatalln("--bq-project is required with --survival-bq")
		}
		store.Survival = dataset.BigQuerySurvival{Project: bqProject, Table: survivalBQ}
	}

	cfg := pipeline.DefaultConfig()
	cfg.Scoring.Weight = weight
	cfg.Scoring.Normalization = norm
	cfg.Scoring.Threads = threads
	cfg.MinGroupSize = minGroupSize
	if err := cfg.Scoring.Validate(); err != nil {
		log.Fatalln(err)
	}

	global = &Global{
		Site:          "SIGvival",
		Company:       "Broad Institute",
		Email:         "jamesp@broadinstitute.org",
		SnailMail:     "415 Main Street, Cambridge MA",
		log:           log.New(os.Stderr, log.Prefix(), log.Ldate|log.Ltime),
		storageClient: sclient,

		DataRoot:     dataRoot,
		PreviewWidth: 800,
		Examples:     exampleSignatures(),
		CutPoints:    cutPointChoices,

		store:  store,
		runner: pipeline.NewRunner(store, cfg),
	}

	global.log.Println("Launching", global.Site, "with data from", dataRoot)

	if preload != "" {
		types := signature.ParseList(preload)
		started := time.Now()
		if _, err := store.Expression(context.Background(), types); err != nil {
			log.Fatalln(err)
		}
		if _, err := store.SurvivalRecords(context.Background()); err != nil {
			log.Fatalln(err)
		}
		global.log.Printf("Preloaded %d cancer types in %s\n", len(types), time.Since(started))
	}

	go func() {
		global.log.Println("Starting HTTP server on port", port)

		routing, err := router(global)
		if err != nil {
			errors <- err
			global.log.Println(err)
			sig <- syscall.SIGTERM
			return
		}

		if err := http.ListenAndServe(fmt.Sprintf(`:%d`, port), routing); err != nil {
			errors <- err
			global.log.Println(err)
			sig <- syscall.SIGTERM
			return
		}
	}()

Outer:
	for {
		select {
		case sigl := <-sig:

			if sigl == syscall.SIGUSR1 {
				SigStatus()
				continue
			}

			if sigl == syscall.SIGHUP {
				global.store.Reload()
				continue
			}

			// By default, exit
			global.log.Printf("\nExit: %s\n", sigl.String())

			break Outer

		case err := <-errors:
			if err == nil {
				global.log.Println("Finished")
				break Outer
			}

			// Return a status code indicating failure
			global.log.Println("Exiting due to error", err)
			os.Exit(1)
		}
	}
}

func SigStatus() {
	global.log.Println("There are", runtime.NumGoroutine(), "goroutines running")
}
