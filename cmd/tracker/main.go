package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/stillwatch-data/sedentary.report/internal/api"
	"github.com/stillwatch-data/sedentary.report/internal/config"
	"github.com/stillwatch-data/sedentary.report/internal/db"
	"github.com/stillwatch-data/sedentary.report/internal/engine"
	"github.com/stillwatch-data/sedentary.report/internal/serialmux"
	"github.com/stillwatch-data/sedentary.report/internal/timeutil"
	"github.com/stillwatch-data/sedentary.report/internal/version"
)

var (
	devMode       = flag.Bool("dev", false, "Run in dev mode (replay fixtures.txt instead of opening a serial port)")
	configPath    = flag.String("config", "", "Path to tuning config JSON file")
	listen        = flag.String("listen", "", "Listen address (overrides config)")
	serialPort    = flag.String("port", "", "Serial port path (overrides config)")
	disableSerial = flag.Bool("disable-serial", false, "Run without any serial transport")
)

func main() {
	flag.Parse()

	// "tracker migrate ..." manages the schema and exits.
	if args := flag.Args(); len(args) > 0 && args[0] == "migrate" {
		cfg := loadConfig()
		db.DevMode = *devMode
		db.RunMigrateCommand(args[1:], cfg.GetDBPath())
		return
	}

	cfg := loadConfig()
	log.Printf("sedentary tracker %s (%s)", version.Version, version.GitSHA)

	addr := cfg.GetListen()
	if *listen != "" {
		addr = *listen
	}
	portPath := cfg.GetSerialPort()
	if *serialPort != "" {
		portPath = *serialPort
	}

	var m serialmux.SerialMuxInterface
	switch {
	case *disableSerial:
		m = serialmux.NewDisabledSerialMux()
		portPath = "disabled"
	case *devMode:
		data, err := os.ReadFile("fixtures.txt")
		if err != nil {
			log.Fatalf("failed to open fixtures file: %v", err)
		}
		m = serialmux.NewMockSerialMux(data, cfg.GetTickInterval())
		portPath = "fixtures.txt"
	default:
		var err error
		m, err = serialmux.NewRealSerialMux(portPath, serialmux.PortOptions{BaudRate: cfg.GetBaudRate()})
		if err != nil {
			log.Fatalf("failed to open serial port %s: %v", portPath, err)
		}
	}
	defer m.Close()

	database, err := db.NewDB(cfg.GetDBPath())
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer database.Close()

	source := serialmux.NewSerialSource(m, portPath)
	eng := engine.New(engine.Params{
		MovementThreshold:  cfg.GetMovementThreshold(),
		SedentaryThreshold: cfg.GetSedentaryThreshold(),
		TransitionWindow:   cfg.GetTransitionWindow(),
		SmoothingWindow:    cfg.GetSmoothingWindow(),
		TickInterval:       cfg.GetTickInterval(),
	}, timeutil.RealClock{}, source, database, database)

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// run the monitor routine to manage IO on the serial port
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := m.Monitor(ctx); err != nil && err != context.Canceled {
			log.Printf("failed to monitor serial port: %v", err)
		}
		log.Print("monitor routine terminated")
	}()

	if err := m.Initialize(); err != nil {
		log.Printf("failed to initialize sensor: %v", err)
	}

	// consume serial lines into the engine's sample source
	wg.Add(1)
	go func() {
		defer wg.Done()
		source.Run(ctx)
		log.Print("sample source routine terminated")
	}()

	// classification tick loop
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := eng.Run(ctx); err != nil && err != context.Canceled {
			log.Printf("engine stopped: %v", err)
		}
		log.Print("engine routine terminated")
	}()

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := http.NewServeMux()

		// mount the admin debugging routes
		if err := database.AttachAdminRoutes(mux); err != nil {
			log.Printf("failed to attach db admin routes: %v", err)
		}
		m.AttachAdminRoutes(mux)

		apiMux := api.NewServer(m, database, eng, source, cfg).ServeMux()
		mux.Handle("/api/", apiMux)
		mux.Handle("/charts/", apiMux)

		server := &http.Server{
			Addr:    addr,
			Handler: api.LoggingMiddleware(mux),
		}

		go func() {
			log.Printf("listening on %s", addr)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}

		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()
	log.Printf("Graceful shutdown complete")
}

func loadConfig() *config.TuningConfig {
	if *configPath == "" {
		return config.EmptyTuningConfig()
	}
	cfg, err := config.LoadTuningConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load config %s: %v", *configPath, err)
	}
	return cfg
}
