// Command osd-mem runs an in-memory OSD daemon: a content-addressed object
// store speaking the OSD_OP wire protocol over TCP, backed by anonymous-mmap
// pages instead of a real block device.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"runtime"
	"runtime/pprof"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	osd "github.com/behrlich/go-osd"
	"github.com/behrlich/go-osd/internal/config"
	"github.com/behrlich/go-osd/internal/logging"
	"github.com/behrlich/go-osd/internal/messenger"
	"github.com/behrlich/go-osd/internal/monitor"
	"github.com/behrlich/go-osd/internal/pagealloc"
)

func main() {
	var (
		confPath    = flag.String("conf", "", "Path to the osd INI config file")
		listenAddr  = flag.String("listen", ":6800", "Address to accept OSD_OP connections on")
		monAddrs    = flag.String("mon-addrs", "", "Comma-separated monitor addresses (overrides config file)")
		name        = flag.String("name", "", "OSD numeric id (overrides config file)")
		fsid        = flag.String("fsid", "", "Cluster fsid (overrides config file)")
		classDir    = flag.String("class-dir", "", "Object class plugin directory (overrides config file)")
		verbose     = flag.Bool("v", false, "Verbose output")
		noopWrite   = flag.Bool("noop-write", false, "Acknowledge large writes without storing them")
		noopWriteFl = false
	)
	flag.Parse()
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "noop-write" {
			noopWriteFl = true
		}
	})

	var opts *config.Options
	if *confPath != "" {
		var err error
		opts, err = config.Load(*confPath)
		if err != nil {
			log.Fatalf("failed to load config '%s': %v", *confPath, err)
		}
	} else {
		opts = &config.Options{}
	}
	opts.ApplyOverrides(*monAddrs, *name, *fsid, *classDir, 0, false, *noopWrite, noopWriteFl)

	logConfig := logging.DefaultConfig()
	if *verbose {
		logConfig.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	if len(opts.MonAddrs) == 0 {
		logger.Error("no monitor addresses configured; pass -conf or -mon-addrs")
		os.Exit(1)
	}

	logger.Info("starting osd", "osd_id", opts.OSDID, "fsid", opts.FSID, "listen", *listenAddr)

	cmap := monitor.NewMap()
	monClient := monitor.NewClient(cmap, opts.MonAddrs[0])
	alloc := &pagealloc.Mmap{}
	msgr := messenger.NewTCP(logger)

	server := osd.CreateServer(opts, opts.OSDID, alloc, monClient, cmap, msgr, logger, prometheus.DefaultRegisterer)

	if err := server.Start(); err != nil {
		logger.Error("failed to start osd", "error", err)
		os.Exit(1)
	}

	go func() {
		if err := msgr.Listen(*listenAddr, server.Session()); err != nil && !errors.Is(err, net.ErrClosed) {
			logger.Error("failed to listen", "addr", *listenAddr, "error", err)
			os.Exit(1)
		}
	}()

	fmt.Printf("OSD %d listening on %s\n", opts.OSDID, *listenAddr)
	fmt.Printf("Press Ctrl+C to stop...\n")
	fmt.Printf("Send SIGUSR1 (kill -USR1 %d) to dump goroutine stacks\n", os.Getpid())

	stackDumpCh := make(chan os.Signal, 1)
	signal.Notify(stackDumpCh, syscall.SIGUSR1)
	go func() {
		for range stackDumpCh {
			logger.Info("=== GOROUTINE STACK TRACE DUMP ===")
			buf := make([]byte, 1<<20)
			n := runtime.Stack(buf, true)
			fmt.Fprintf(os.Stderr, "\n=== FULL GOROUTINE STACK DUMP ===\n%s\n", buf[:n])
			pprof.Lookup("goroutine").WriteTo(os.Stderr, 2)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("received shutdown signal")

	cleanupDone := make(chan bool)
	go func() {
		server.Stop()
		if err := msgr.Close(); err != nil {
			logger.Error("error closing messenger", "error", err)
		}
		if err := server.Destroy(); err != nil {
			logger.Error("error destroying osd", "error", err)
		} else {
			logger.Info("osd destroyed")
		}
		cleanupDone <- true
	}()

	select {
	case <-cleanupDone:
	case <-time.After(5 * time.Second):
		logger.Info("cleanup timeout, forcing exit")
	}

	_ = logger.Sync()
	os.Exit(0)
}
