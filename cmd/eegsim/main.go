// eegsim streams synthetic EEG recordings to an eegstored instance.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/xtxerr/eegstore/internal/client"
	"github.com/xtxerr/eegstore/internal/logging"
	"github.com/xtxerr/eegstore/internal/simulate"
)

func main() {
	os.Exit(run())
}

func run() int {
	baseURL := flag.String("url", "http://localhost:8000", "eegstored base URL")
	encoding := flag.String("encoding", "json", "wire encoding: json, protobuf or protobuf+snappy")
	patient := flag.String("patient", "chb01", "patient prefix for recording ids")
	recordings := flag.Int("recordings", 1, "recordings to stream concurrently")
	seconds := flag.Int("seconds", 60, "length of each recording in seconds")
	rate := flag.Int("rate", 256, "sampling rate in Hz")
	chunkSec := flag.Int("chunk-seconds", 1, "chunk length in seconds")
	limit := flag.Int("limit", 10, "chunks per recording, 0 for all")
	delay := flag.Duration("delay", 10*time.Millisecond, "pause between chunks")
	seed := flag.Int64("seed", 1, "signal seed")
	logLevel := flag.String("log-level", "info", "log level")
	flag.Parse()

	logging.Init(logging.ParseLevel(*logLevel), false)
	log := logging.Component("eegsim")

	cfg := client.DefaultConfig()
	cfg.BaseURL = *baseURL
	cfg.Encoding = client.ParseEncoding(*encoding)
	c, err := client.New(cfg)
	if err != nil {
		log.Error("create client", "error", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if _, err := c.Health(ctx); err != nil {
		log.Error("server not reachable", "url", *baseURL, "error", err)
		return 1
	}

	recs := make([]simulate.Recording, *recordings)
	for i := range recs {
		id := fmt.Sprintf("%s_%02d.edf", *patient, i+1)
		recs[i] = simulate.NewRecording(id, simulate.CHBMITChannels, *rate, *seconds, *seed+int64(i))
	}

	streamer := simulate.NewStreamer(c, simulate.Options{
		ChunkSeconds: *chunkSec,
		Limit:        *limit,
		Delay:        *delay,
	})

	log.Info("streaming",
		"recordings", len(recs),
		"channels", len(simulate.CHBMITChannels),
		"rate", *rate,
		"encoding", cfg.Encoding.String())

	start := time.Now()
	reports, err := streamer.StreamAll(ctx, recs)
	for _, rep := range reports {
		log.Info("recording done",
			"recording_id", rep.RecordingID,
			"sent", rep.Sent,
			"accepted", rep.Accepted,
			"duplicates", rep.Duplicates,
			"samples", rep.Samples)
	}
	if err != nil {
		log.Error("stream failed", "error", err)
		return 1
	}
	log.Info("done", "elapsed", time.Since(start).Round(time.Millisecond))
	return 0
}
