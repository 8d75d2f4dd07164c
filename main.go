package main

import (
	"errors"
	"flag"
	"log"
	"os"
	"scdl/cmd"
	"scdl/config"
)

func main() {
	var (
		server bool
		port   int
		opts   cmd.ClientOptions
	)

	flag.BoolVar(&server, "server", false, "Start the download service")
	flag.IntVar(&port, "port", config.GetPort(), "Port for the download service")
	flag.StringVar(&opts.URL, "url", "", "SoundCloud track or playlist URL to download")
	flag.StringVar(&opts.Mode, "mode", "", "single or playlist (guessed from the URL when empty)")
	flag.StringVar(&opts.Format, "format", "", "Audio format: mp3, m4a, opus, flac or wav")
	flag.StringVar(&opts.Quality, "quality", "", "Audio quality in kbps, or best")
	flag.BoolVar(&opts.CreateFolder, "create-folder", true, "Playlist: put tracks in a folder named after the playlist")
	flag.BoolVar(&opts.NumberTracks, "number-tracks", true, "Playlist: prefix tracks with their playlist number")
	flag.IntVar(&opts.Limit, "limit", 0, "Playlist: download at most this many tracks (0 = all)")
	flag.StringVar(&opts.OutputDir, "out", "", "Directory to save files in")
	flag.StringVar(&opts.Endpoint, "endpoint", "", "Download service base URL")
	flag.BoolVar(&opts.ShowHistory, "history", false, "Show recent downloads")
	flag.StringVar(&opts.InfoURL, "info", "", "Show track or playlist information for a URL")
	flag.Parse()

	// Server mode takes precedence
	if server {
		if err := cmd.StartWebServer(port); err != nil {
			log.Fatalf("Server error: %v", err)
		}
		return
	}

	if opts.URL == "" && !opts.ShowHistory && opts.InfoURL == "" {
		flag.Usage()
		os.Exit(2)
	}

	if err := cmd.RunClient(opts); err != nil {
		if errors.Is(err, cmd.ErrReported) {
			os.Exit(1)
		}
		log.Fatalf("Error: %v", err)
	}
}
